package segmentation

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyInput is returned when a run is started without transcript snippets.
var ErrEmptyInput = errors.New("no transcript snippets provided")

// RateLimitedError is returned by a Segmenter when the inference provider
// throttled the call. The scheduler stops on it and keeps partial results.
type RateLimitedError struct {
	// RetryAfter is the provider's suggested wait, zero when unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.Err == nil {
		return "segmentation rate limited"
	}
	return fmt.Sprintf("segmentation rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is or wraps a *RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
