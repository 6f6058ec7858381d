package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestClient_SegmentChunk(t *testing.T) {
	var gotPrompt string
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		if len(req.Messages) == 2 {
			gotPrompt = req.Messages[1].Content
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody(`{"video_id":"vid (part 2)","total_segments":3,"overall_topic":"Go","segments":[
			{"title":"Intro","start_time":0,"end_time":120,"summary":"hello","key_topics":["go"],"difficulty_level":"easy"},
			{"title":"Broken","start_time":200,"end_time":200,"summary":"zero length","key_topics":[]},
			{"title":"Body","start_time":120,"end_time":900,"summary":"body","key_topics":["types"],"difficulty_level":"weird"}]}`))
	})

	seg, err := c.SegmentChunk(context.Background(), "vid (part 2)", "[00:00] hello")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Contains(t, gotPrompt, "VIDEO ID: vid (part 2)")
	assert.Contains(t, gotPrompt, "[00:00] hello")

	assert.Equal(t, "Go", seg.OverallTopic)
	require.Len(t, seg.Segments, 2)
	assert.Equal(t, 2, seg.TotalSegments)
	assert.Equal(t, segmentation.DifficultyEasy, seg.Segments[0].Difficulty)
	assert.Equal(t, segmentation.DifficultyMedium, seg.Segments[1].Difficulty)
}

func TestClient_RateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"rate_limit_exceeded"}}`)
	})

	_, err := c.SegmentChunk(context.Background(), "vid", "[00:00] hi")

	require.Error(t, err)
	var rl *segmentation.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, int32(1), calls.Load(), "client must not retry")
}

func TestClient_ServerErrorIsNotRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"rate limiter exploded","type":"server_error"}}`)
	})

	_, err := c.SegmentChunk(context.Background(), "vid", "[00:00] hi")

	require.Error(t, err)
	assert.False(t, segmentation.IsRateLimited(err))
}

func TestClient_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody("I cannot help with that"))
	})

	_, err := c.SegmentChunk(context.Background(), "vid", "[00:00] hi")

	require.Error(t, err)
	assert.False(t, segmentation.IsRateLimited(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestParseSegmentation_ExtractsWrappedObject(t *testing.T) {
	seg, err := parseSegmentation("Here you go:\n```json\n{\"overall_topic\":\"x\",\"segments\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", seg.OverallTopic)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 50*time.Second)
	assert.LessOrEqual(t, d, time.Minute)
}
