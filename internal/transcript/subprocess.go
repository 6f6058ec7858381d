package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// DefaultLanguages is the caption language preference order.
var DefaultLanguages = []string{"en", "es", "fr", "de", "pt", "it", "ja", "ko", "zh-Hans", "zh-Hant"}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SubprocessConfig holds the subprocess source's configuration.
type SubprocessConfig struct {
	PythonPath string        // path to python binary; empty = auto-detect
	ModuleName string        // default "youtube_transcript_api"
	Languages  []string      // preference order passed to --languages
	Timeout    time.Duration // per fetch
	Logger     *slog.Logger
}

// DefaultSubprocessConfig returns production defaults.
func DefaultSubprocessConfig(logger *slog.Logger) SubprocessConfig {
	return SubprocessConfig{
		ModuleName: "youtube_transcript_api",
		Languages:  DefaultLanguages,
		Timeout:    60 * time.Second,
		Logger:     logger,
	}
}

// FetchError reports a transcript CLI that exited non-zero.
type FetchError struct {
	ExitCode   int
	StderrTail string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("transcript fetch exited %d: %s", e.ExitCode, truncate(e.StderrTail, 512))
}

// SubprocessSource fetches captions by running the youtube_transcript_api
// Python CLI with JSON output.
type SubprocessSource struct {
	cfg    SubprocessConfig
	python string // resolved python path
}

// NewSubprocessSource resolves the Python binary and returns a source.
func NewSubprocessSource(cfg SubprocessConfig) (*SubprocessSource, error) {
	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}
	if cfg.ModuleName == "" {
		cfg.ModuleName = "youtube_transcript_api"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cfg.Logger.Info("transcript source initialised",
		"python", python,
		"module", cfg.ModuleName,
	)

	return &SubprocessSource{cfg: cfg, python: python}, nil
}

func (s *SubprocessSource) Fetch(ctx context.Context, videoID string) ([]Snippet, error) {
	if !videoIDPattern.MatchString(videoID) {
		return nil, fmt.Errorf("invalid video id %q", videoID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	args := []string{"-m", s.cfg.ModuleName, videoID, "--format", "json", "--languages"}
	args = append(args, s.cfg.Languages...)

	stdout, err := s.exec(ctx, args)
	if err != nil {
		return nil, err
	}

	snippets, err := decodeSnippets(stdout)
	if err != nil {
		// the CLI reports missing or disabled captions as plain text on stdout
		return nil, fmt.Errorf("%w: %s", ErrNotFound, truncate(strings.TrimSpace(string(stdout)), 256))
	}
	if len(snippets) == 0 {
		return nil, ErrNotFound
	}
	return snippets, nil
}

// exec runs the CLI and returns its stdout.
func (s *SubprocessSource) exec(ctx context.Context, args []string) ([]byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, s.python, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	s.cfg.Logger.Debug("executing transcript command", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcript fetch: %w", ctx.Err())
		}

		s.cfg.Logger.Warn("transcript command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return nil, &FetchError{ExitCode: exitCode, StderrTail: stderrBuf.String()}
	}

	s.cfg.Logger.Info("transcript command succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"bytes", stdout.Len(),
	)
	return stdout.Bytes(), nil
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
