// Package transcript holds the timestamped caption snippets of a video,
// the sources they are fetched from, and the windowing that turns a time
// range of snippets into the bounded text handed to a segmenter.
package transcript

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by a Source when no transcript exists for a video.
var ErrNotFound = errors.New("transcript not found")

// Snippet is one caption line. Start and Duration are in seconds.
type Snippet struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the time the snippet stops being spoken.
func (s Snippet) End() float64 { return s.Start + s.Duration }

// Source fetches the ordered snippets of a video.
type Source interface {
	Fetch(ctx context.Context, videoID string) ([]Snippet, error)
}

// TotalDuration is the end of the last snippet, or 0 for an empty transcript.
func TotalDuration(snippets []Snippet) float64 {
	if len(snippets) == 0 {
		return 0
	}
	return snippets[len(snippets)-1].End()
}

// FullText joins all snippet texts with single spaces.
func FullText(snippets []Snippet) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
