// Package llm implements segmentation.Segmenter against an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

const (
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultTimeout = 120 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client segments transcript windows with a chat completion model.
type Client struct {
	client openai.Client
	cfg    Config
	logger *slog.Logger
}

var _ segmentation.Segmenter = (*Client)(nil)

// NewClient creates a Client. Provider retries are disabled so a 429 reaches
// the scheduler as a rate-limit signal.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With("component", "llm"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// SegmentChunk asks the model to segment one transcript window.
func (c *Client) SegmentChunk(ctx context.Context, identifier, window string) (*segmentation.Segmentation, error) {
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(identifier, window)),
		},
		Model:       c.cfg.Model,
		Temperature: openai.Float(c.cfg.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	seg, err := parseSegmentation(raw)
	if err != nil {
		return nil, err
	}

	kept := seg.Segments[:0]
	for _, s := range seg.Segments {
		if s.EndTime <= s.StartTime {
			c.logger.Warn("dropping segment with empty time range",
				"identifier", identifier,
				"title", s.Title,
				"start", s.StartTime,
				"end", s.EndTime,
			)
			continue
		}
		s.Difficulty = s.Difficulty.OrDefault()
		kept = append(kept, s)
	}

	c.logger.Debug("chunk segmented",
		"identifier", identifier,
		"segments", len(kept),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return segmentation.NewSegmentation(seg.VideoID, seg.OverallTopic, kept), nil
}

// classify turns provider throttling into *segmentation.RateLimitedError.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		rl := &segmentation.RateLimitedError{Err: err}
		if apiErr.Response != nil {
			rl.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return rl
	}
	return fmt.Errorf("chat completion: %w", err)
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func parseSegmentation(raw string) (*segmentation.Segmentation, error) {
	if raw == "" {
		return nil, errors.New("model returned empty content")
	}

	var seg segmentation.Segmentation
	if err := json.Unmarshal([]byte(raw), &seg); err != nil {
		fixed := extractFirstJSONObject(raw)
		if fixed == "" {
			return nil, fmt.Errorf("parse segmentation JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(fixed), &seg); err != nil {
			return nil, fmt.Errorf("parse segmentation JSON: %w", err)
		}
	}
	return &seg, nil
}

func extractFirstJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
