package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

// Video is a stored transcript.
type Video struct {
	VideoID         string               `json:"video_id"`
	Title           string               `json:"title,omitempty"`
	DurationSeconds float64              `json:"duration_seconds"`
	SnippetCount    int                  `json:"snippet_count"`
	Transcript      []transcript.Snippet `json:"-"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

// StoredSegmentation is one saved segmentation run for a video.
type StoredSegmentation struct {
	ID               int64                      `json:"id"`
	VideoID          string                     `json:"video_id"`
	OverallTopic     string                     `json:"overall_topic"`
	TotalSegments    int                        `json:"total_segments"`
	Segmentation     *segmentation.Segmentation `json:"segmentation"`
	ProcessingStatus string                     `json:"processing_status"`
	ChunksProcessed  int                        `json:"chunks_processed,omitempty"`
	TotalChunks      int                        `json:"total_chunks,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// ProcessingStatus is partial when fewer chunks were processed than planned.
func ProcessingStatus(outcome *segmentation.Outcome) string {
	if outcome != nil && outcome.TotalChunks > 0 && outcome.ChunksSucceeded < outcome.TotalChunks {
		return StatusPartial
	}
	return StatusComplete
}

const (
	JobTypeSegment = "segment"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	VideoID        string    `json:"video_id,omitempty"`
	Force          bool      `json:"force"`
	Progress       int       `json:"progress"`
	SegmentationID int64     `json:"segmentation_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stats summarizes the store.
type Stats struct {
	Videos               int     `json:"videos"`
	Segmentations        int     `json:"segmentations"`
	Segments             int     `json:"segments"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	TotalDurationHours   float64 `json:"total_duration_hours"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}
