package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/topicseg/topicseg-agent/internal/cache"
	"github.com/topicseg/topicseg-agent/internal/metrics"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

const DefaultMaxConcurrentRuns = 2

// ErrVideoIDRequired is returned when an operation is given an empty video id.
var ErrVideoIDRequired = errors.New("video id is required")

type SegmentationService interface {
	Transcript(ctx context.Context, videoID string) (*Video, error)
	Segment(ctx context.Context, videoID string, force bool, progress func(segmentation.ChunkEvent)) (*SegmentResult, error)
	SegmentsByTime(ctx context.Context, videoID string, start, end float64) ([]segmentation.Segment, error)
	SegmentAt(ctx context.Context, videoID string, at float64) (*segmentation.Segment, error)
	SearchSegments(ctx context.Context, videoID, query string) ([]segmentation.Segment, error)
	LatestSegmentation(ctx context.Context, videoID string) (*segmentation.Segmentation, error)
	TranscriptRange(ctx context.Context, videoID string, start, end float64) ([]transcript.Snippet, error)
	Stats(ctx context.Context) (*Stats, error)
	CountVideos(ctx context.Context) (int, error)

	CreateSegmentJob(ctx context.Context, videoID string, force bool) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}

// SegmentResult is a segmentation together with where it came from.
type SegmentResult struct {
	Segmentation     *segmentation.Segmentation `json:"segmentation"`
	SegmentationID   int64                      `json:"segmentation_id,omitempty"`
	ProcessingStatus string                     `json:"processing_status"`
	ChunksProcessed  int                        `json:"chunks_processed,omitempty"`
	TotalChunks      int                        `json:"total_chunks,omitempty"`
	Cached           bool                       `json:"cached"`
}

type ServiceConfig struct {
	MinCoverage       float64
	MaxConcurrentRuns int64
}

type Service struct {
	repo        Repository
	source      transcript.Source
	scheduler   *segmentation.Scheduler
	hot         cache.Cache
	runs        *semaphore.Weighted
	minCoverage float64
	logger      *slog.Logger
}

var _ SegmentationService = (*Service)(nil)

func NewService(repo Repository, source transcript.Source, scheduler *segmentation.Scheduler, hot cache.Cache, cfg ServiceConfig, logger *slog.Logger) *Service {
	if hot == nil {
		hot = cache.Noop{}
	}
	if cfg.MinCoverage <= 0 {
		cfg.MinCoverage = segmentation.DefaultMinCoverage
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		source:      source,
		scheduler:   scheduler,
		hot:         hot,
		runs:        semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		minCoverage: cfg.MinCoverage,
		logger:      logger,
	}
}

// Transcript returns the stored transcript, fetching and storing it on first
// use.
func (s *Service) Transcript(ctx context.Context, videoID string) (*Video, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}

	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if video != nil {
		return video, nil
	}

	if s.source == nil {
		return nil, fmt.Errorf("%s: %w", videoID, transcript.ErrNotFound)
	}
	snippets, err := s.source.Fetch(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	if len(snippets) == 0 {
		return nil, fmt.Errorf("%s: %w", videoID, transcript.ErrNotFound)
	}

	video = &Video{VideoID: videoID, Transcript: snippets}
	if err := s.repo.SaveVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	s.logger.Info("transcript stored",
		"video_id", videoID,
		"snippets", video.SnippetCount,
		"duration", video.DurationSeconds,
	)
	return video, nil
}

// Segment returns a segmentation of the video. A stored segmentation is
// reused only when it covers the video; anything else is regenerated.
func (s *Service) Segment(ctx context.Context, videoID string, force bool, progress func(segmentation.ChunkEvent)) (*SegmentResult, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}

	if !force {
		cached, err := s.lookup(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	video, err := s.Transcript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := s.runs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.runs.Release(1)

	began := time.Now()
	seg, outcome, err := s.scheduler.ScheduleWithProgress(ctx, videoID, video.Transcript, func(ev segmentation.ChunkEvent) {
		recordChunk(ev)
		if progress != nil {
			progress(ev)
		}
	})
	if err != nil {
		metrics.RecordRun(metrics.RunFailed, time.Since(began).Seconds())
		return nil, err
	}

	status := ProcessingStatus(&outcome)
	if status == StatusPartial {
		metrics.RecordRun(metrics.RunPartial, time.Since(began).Seconds())
	} else {
		metrics.RecordRun(metrics.RunComplete, time.Since(began).Seconds())
	}

	id, err := s.repo.SaveSegmentation(ctx, videoID, seg, &outcome)
	if err != nil {
		return nil, fmt.Errorf("save segmentation: %w", err)
	}

	if status == StatusComplete {
		if err := s.hot.Set(ctx, videoID, seg); err != nil {
			s.logger.Warn("hot cache update failed", "video_id", videoID, "error", err)
		}
	} else if err := s.hot.Delete(ctx, videoID); err != nil {
		s.logger.Warn("hot cache eviction failed", "video_id", videoID, "error", err)
	}

	s.logger.Info("segmentation stored",
		"video_id", videoID,
		"segmentation_id", id,
		"segments", seg.TotalSegments,
		"status", status,
		"elapsed", time.Since(began).Round(time.Millisecond),
	)

	return &SegmentResult{
		Segmentation:     seg,
		SegmentationID:   id,
		ProcessingStatus: status,
		ChunksProcessed:  outcome.ChunksSucceeded,
		TotalChunks:      outcome.TotalChunks,
	}, nil
}

// lookup checks the hot cache, then SQLite. It returns nil when neither
// holds a segmentation covering the video.
func (s *Service) lookup(ctx context.Context, videoID string) (*SegmentResult, error) {
	duration, err := s.repo.GetVideoDuration(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video duration: %w", err)
	}

	hot, err := s.hot.Get(ctx, videoID)
	switch {
	case err != nil:
		s.logger.Warn("hot cache read failed", "video_id", videoID, "error", err)
	case hot == nil:
		metrics.RecordCacheLookup("redis", metrics.CacheMiss)
	case segmentation.IsCoverageComplete(hot, duration, s.minCoverage):
		metrics.RecordCacheLookup("redis", metrics.CacheHit)
		return &SegmentResult{Segmentation: hot, ProcessingStatus: StatusComplete, Cached: true}, nil
	default:
		metrics.RecordCacheLookup("redis", metrics.CacheStale)
	}

	stored, err := s.repo.GetSegmentation(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load segmentation: %w", err)
	}
	if stored == nil {
		metrics.RecordCacheLookup("sqlite", metrics.CacheMiss)
		return nil, nil
	}
	if !segmentation.IsCoverageComplete(stored.Segmentation, duration, s.minCoverage) {
		metrics.RecordCacheLookup("sqlite", metrics.CacheStale)
		s.logger.Info("stored segmentation incomplete, regenerating",
			"video_id", videoID,
			"coverage", segmentation.Coverage(stored.Segmentation, duration),
			"status", stored.ProcessingStatus,
		)
		return nil, nil
	}

	metrics.RecordCacheLookup("sqlite", metrics.CacheHit)
	if err := s.hot.Set(ctx, videoID, stored.Segmentation); err != nil {
		s.logger.Warn("hot cache update failed", "video_id", videoID, "error", err)
	}
	return &SegmentResult{
		Segmentation:     stored.Segmentation,
		SegmentationID:   stored.ID,
		ProcessingStatus: stored.ProcessingStatus,
		ChunksProcessed:  stored.ChunksProcessed,
		TotalChunks:      stored.TotalChunks,
		Cached:           true,
	}, nil
}

func recordChunk(ev segmentation.ChunkEvent) {
	outcome := metrics.OutcomeSuccess
	switch {
	case segmentation.IsRateLimited(ev.Err):
		outcome = metrics.OutcomeRateLimited
	case ev.Err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.RecordChunkCall(outcome, ev.Elapsed.Seconds())
	if ev.WindowTruncated {
		metrics.RecordTruncatedWindow()
	}
}

func (s *Service) SegmentsByTime(ctx context.Context, videoID string, start, end float64) ([]segmentation.Segment, error) {
	if end < start {
		start, end = end, start
	}
	return s.repo.GetSegmentsByTime(ctx, videoID, start, end)
}

// SegmentAt returns the segment playing at the given second, or nil.
func (s *Service) SegmentAt(ctx context.Context, videoID string, at float64) (*segmentation.Segment, error) {
	segments, err := s.repo.GetSegmentsByTime(ctx, videoID, at, at)
	if err != nil {
		return nil, err
	}
	for i := range segments {
		if segments[i].StartTime <= at && at < segments[i].EndTime {
			return &segments[i], nil
		}
	}
	if len(segments) > 0 {
		return &segments[len(segments)-1], nil
	}
	return nil, nil
}

func (s *Service) SearchSegments(ctx context.Context, videoID, query string) ([]segmentation.Segment, error) {
	return s.repo.SearchSegments(ctx, videoID, query)
}

// LatestSegmentation returns the most recently stored segmentation of a
// video, complete or not, or nil when none exists.
func (s *Service) LatestSegmentation(ctx context.Context, videoID string) (*segmentation.Segmentation, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}
	stored, err := s.repo.GetSegmentation(ctx, videoID)
	if err != nil || stored == nil {
		return nil, err
	}
	return stored.Segmentation, nil
}

// TranscriptRange returns the stored snippets starting inside [start, end).
func (s *Service) TranscriptRange(ctx context.Context, videoID string, start, end float64) ([]transcript.Snippet, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, nil
	}
	var out []transcript.Snippet
	for _, sn := range video.Transcript {
		if sn.Start >= start && sn.Start < end {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) CountVideos(ctx context.Context) (int, error) {
	return s.repo.CountVideos(ctx)
}

// CreateSegmentJob queues a segmentation for the background runner.
func (s *Service) CreateSegmentJob(ctx context.Context, videoID string, force bool) (*Job, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeSegment,
		Status:    JobStatusPending,
		VideoID:   videoID,
		Force:     force,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("segment job created", "job_id", job.ID, "video_id", videoID, "force", force)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}
