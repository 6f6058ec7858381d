package api

import (
	"time"

	"github.com/topicseg/topicseg-agent/internal/catalog"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	InstanceID string `json:"instance_id,omitempty"`
	UptimeS    int64  `json:"uptime_s"`
	Database   string `json:"database"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	LastError   string       `json:"last_error,omitempty"`
	VideosCount int          `json:"videos_count"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

type TranscriptResponse struct {
	VideoID         string  `json:"video_id"`
	Transcript      string  `json:"transcript"`
	Length          string  `json:"length"`
	DurationSeconds float64 `json:"duration_seconds"`
	SnippetCount    int     `json:"snippet_count"`
}

type SnippetResponse struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	Timestamp string  `json:"timestamp"`
}

type TranscriptRangeResponse struct {
	VideoID  string            `json:"video_id"`
	Start    float64           `json:"start"`
	End      float64           `json:"end"`
	Snippets []SnippetResponse `json:"snippets"`
}

type SegmentResponse struct {
	VideoID          string                 `json:"video_id"`
	TotalSegments    int                    `json:"total_segments"`
	Segments         []segmentation.Segment `json:"segments"`
	OverallTopic     string                 `json:"overall_topic,omitempty"`
	ProcessingStatus string                 `json:"processing_status"`
	ChunksProcessed  int                    `json:"chunks_processed,omitempty"`
	TotalChunks      int                    `json:"total_chunks,omitempty"`
	SegmentationID   int64                  `json:"segmentation_id,omitempty"`
	Cached           bool                   `json:"cached"`
}

type SegmentsResponse struct {
	VideoID  string                 `json:"video_id"`
	Segments []segmentation.Segment `json:"segments"`
}

type CreateJobRequest struct {
	VideoID string `json:"video_id"`
	Force   bool   `json:"force,omitempty"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	VideoID        string `json:"video_id,omitempty"`
	Force          bool   `json:"force"`
	Progress       int    `json:"progress"`
	SegmentationID int64  `json:"segmentation_id,omitempty"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:             j.ID,
		Type:           j.Type,
		Status:         j.Status,
		VideoID:        j.VideoID,
		Force:          j.Force,
		Progress:       j.Progress,
		SegmentationID: j.SegmentationID,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      j.UpdatedAt.Format(time.RFC3339),
	}
}

func SegmentResultToResponse(res *catalog.SegmentResult) SegmentResponse {
	seg := res.Segmentation
	return SegmentResponse{
		VideoID:          seg.VideoID,
		TotalSegments:    seg.TotalSegments,
		Segments:         nonNilSegments(seg.Segments),
		OverallTopic:     seg.OverallTopic,
		ProcessingStatus: res.ProcessingStatus,
		ChunksProcessed:  res.ChunksProcessed,
		TotalChunks:      res.TotalChunks,
		SegmentationID:   res.SegmentationID,
		Cached:           res.Cached,
	}
}

func nonNilSegments(s []segmentation.Segment) []segmentation.Segment {
	if s == nil {
		return []segmentation.Segment{}
	}
	return s
}
