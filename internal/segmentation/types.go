// Package segmentation splits long transcripts into overlapping chunks,
// segments each chunk through a Segmenter, and stitches the per-chunk
// results back into one chronological set of topic segments.
package segmentation

import (
	"context"
	"strings"
)

// Difficulty is the estimated difficulty of a segment's material.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// OrDefault normalizes d, mapping anything unrecognized to medium.
func (d Difficulty) OrDefault() Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(string(d)))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Segment is one topic section of a video. Times are in seconds.
type Segment struct {
	Title      string     `json:"title"`
	StartTime  float64    `json:"start_time"`
	EndTime    float64    `json:"end_time"`
	Summary    string     `json:"summary"`
	KeyTopics  []string   `json:"key_topics"`
	Difficulty Difficulty `json:"difficulty_level"`
}

// richness is the overlap tie-break weight: summary length plus topic count.
func (s Segment) richness() int {
	return len(s.Summary) + len(s.KeyTopics)
}

// Segmentation is the full result for a video.
type Segmentation struct {
	VideoID       string    `json:"video_id"`
	TotalSegments int       `json:"total_segments"`
	Segments      []Segment `json:"segments"`
	OverallTopic  string    `json:"overall_topic,omitempty"`
}

// NewSegmentation builds a Segmentation whose TotalSegments matches its
// segment list.
func NewSegmentation(videoID, overallTopic string, segments []Segment) *Segmentation {
	if segments == nil {
		segments = []Segment{}
	}
	return &Segmentation{
		VideoID:       videoID,
		TotalSegments: len(segments),
		Segments:      segments,
		OverallTopic:  overallTopic,
	}
}

// LastEnd returns the latest segment end time, 0 when there are none.
func (s *Segmentation) LastEnd() float64 {
	if s == nil {
		return 0
	}
	var last float64
	for _, seg := range s.Segments {
		if seg.EndTime > last {
			last = seg.EndTime
		}
	}
	return last
}

// Outcome records how far a scheduling run got.
type Outcome struct {
	ChunksAttempted int  `json:"chunks_attempted"`
	ChunksSucceeded int  `json:"chunks_succeeded"`
	TotalChunks     int  `json:"total_chunks"`
	Truncated       bool `json:"truncated"`
}

// Complete reports whether every planned chunk was processed.
func (o Outcome) Complete() bool {
	return !o.Truncated && o.ChunksSucceeded >= o.TotalChunks
}

// Segmenter segments a single transcript window. Implementations must
// return a *RateLimitedError when the provider throttles the call.
type Segmenter interface {
	SegmentChunk(ctx context.Context, identifier, window string) (*Segmentation, error)
}

// SegmenterFunc adapts a function to the Segmenter interface.
type SegmenterFunc func(ctx context.Context, identifier, window string) (*Segmentation, error)

func (f SegmenterFunc) SegmentChunk(ctx context.Context, identifier, window string) (*Segmentation, error) {
	return f(ctx, identifier, window)
}
