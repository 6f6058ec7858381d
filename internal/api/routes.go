package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/topicseg/topicseg-agent/internal/catalog"
	"github.com/topicseg/topicseg-agent/internal/metrics"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/timecode"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/stats", statsHandler(cfg))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/transcript", transcriptHandler(cfg))
	r.Get("/segment", segmentHandler(cfg))

	r.Post("/jobs", createJobHandler(cfg))
	r.Get("/jobs", listJobsHandler(cfg))
	r.Get("/jobs/{id}", getJobHandler(cfg))
	r.Get("/jobs/{id}/ws", jobProgressSocketHandler(cfg))

	r.Route("/videos/{id}", func(r chi.Router) {
		r.Get("/transcript", transcriptRangeHandler(cfg))
		r.Get("/segments", segmentsByTimeHandler(cfg))
		r.Get("/segments/search", searchSegmentsHandler(cfg))
		r.Get("/segments/at", segmentAtHandler(cfg))
		r.Get("/export", exportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:     "ok",
			Version:    cfg.Version,
			InstanceID: cfg.InstanceID,
			UptimeS:    int64(time.Since(cfg.StartTime).Seconds()),
			Database:   "ok",
		}
		if cfg.Database != nil {
			if err := cfg.Database.Ping(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Database = "unavailable"
				WriteJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		videos, _ := cfg.Service.CountVideos(ctx)
		jobs, _ := cfg.Service.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning {
				state = "segmenting"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:       state,
			LastError:   lastError,
			VideosCount: videos,
			JobsRunning: jobsRunning,
			ActiveJob:   activeJob,
		})
	}
}

func statsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := cfg.Service.Stats(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load stats", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}

func transcriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Service.Transcript(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, TranscriptResponse{
			VideoID:         video.VideoID,
			Transcript:      transcript.FullText(video.Transcript),
			Length:          timecode.Humanize(video.DurationSeconds),
			DurationSeconds: video.DurationSeconds,
			SnippetCount:    video.SnippetCount,
		})
	}
}

func segmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		videoID := q.Get("video_id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}
		force, err := parseBool(q.Get("force"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "force must be a boolean", "BAD_REQUEST")
			return
		}

		res, err := cfg.Service.Segment(r.Context(), videoID, force, nil)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SegmentResultToResponse(res))
	}
}

func createJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.VideoID) == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.CreateSegmentJob(r.Context(), strings.TrimSpace(req.VideoID), req.Force)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateJobResponse{JobID: job.ID})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, 500)
		}

		jobs, err := cfg.Service.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var rl *segmentation.RateLimitedError
	switch {
	case errors.Is(err, catalog.ErrVideoIDRequired):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, transcript.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "TRANSCRIPT_NOT_FOUND")
	case errors.Is(err, segmentation.ErrEmptyInput):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_TRANSCRIPT")
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		WriteError(w, http.StatusTooManyRequests, err.Error(), "RATE_LIMITED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// parseSeconds accepts plain seconds ("75.5") or a timestamp ("01:15").
func parseSeconds(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		return v, nil
	}
	return timecode.Parse(s)
}
