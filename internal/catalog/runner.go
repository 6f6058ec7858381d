package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

const DefaultPollInterval = 2 * time.Second

type Runner struct {
	service      *Service
	repo         Repository
	hub          *ProgressHub
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	busy         atomic.Bool
}

func NewRunner(service *Service, repo Repository, hub *ProgressHub, logger *slog.Logger) *Runner {
	if hub == nil {
		hub = NewProgressHub()
	}
	return &Runner{
		service:      service,
		repo:         repo,
		hub:          hub,
		logger:       logger,
		pollInterval: DefaultPollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// IsBusy reports whether a job is being processed right now.
func (r *Runner) IsBusy() bool {
	return r.busy.Load()
}

func (r *Runner) Hub() *ProgressHub {
	return r.hub
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	r.busy.Store(true)
	defer r.busy.Store(false)

	switch job.Type {
	case JobTypeSegment:
		r.processSegmentJob(ctx, job)

	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.fail(ctx, job, "unknown job type")
	}
}

func (r *Runner) processSegmentJob(ctx context.Context, job *Job) {
	if job.VideoID == "" {
		r.fail(ctx, job, "video id missing")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	r.hub.Publish(ProgressEvent{JobID: job.ID, VideoID: job.VideoID, Status: JobStatusRunning})

	result, err := r.service.Segment(ctx, job.VideoID, job.Force, func(ev segmentation.ChunkEvent) {
		progress := 0
		if ev.TotalChunks > 0 {
			progress = ev.Chunk.Index * 100 / ev.TotalChunks
		}
		r.repo.UpdateJobProgress(ctx, job.ID, progress)

		pe := ProgressEvent{
			JobID:       job.ID,
			VideoID:     job.VideoID,
			Status:      JobStatusRunning,
			Progress:    progress,
			Chunk:       ev.Chunk.Index,
			TotalChunks: ev.TotalChunks,
			ChunkStart:  ev.Chunk.Start,
			ChunkEnd:    ev.Chunk.End,
			Segments:    ev.Kept,
		}
		if ev.Err != nil {
			pe.Error = ev.Err.Error()
		}
		r.hub.Publish(pe)
	})
	if err != nil {
		r.logger.Error("segment job failed", "job_id", job.ID, "video_id", job.VideoID, "error", err)
		r.fail(ctx, job, err.Error())
		return
	}

	if result.SegmentationID > 0 {
		r.repo.SetJobSegmentation(ctx, job.ID, result.SegmentationID)
	}
	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.hub.Publish(ProgressEvent{
		JobID:       job.ID,
		VideoID:     job.VideoID,
		Status:      JobStatusCompleted,
		Progress:    100,
		TotalChunks: result.TotalChunks,
		Segments:    len(result.Segmentation.Segments),
	})

	r.logger.Info("segment job completed",
		"job_id", job.ID,
		"video_id", job.VideoID,
		"status", result.ProcessingStatus,
		"cached", result.Cached,
	)
}

func (r *Runner) fail(ctx context.Context, job *Job, msg string) {
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, msg)
	r.hub.Publish(ProgressEvent{JobID: job.ID, VideoID: job.VideoID, Status: JobStatusFailed, Error: msg})
}
