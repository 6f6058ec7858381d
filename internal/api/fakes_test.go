package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/topicseg/topicseg-agent/internal/catalog"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

type fakeService struct {
	videos     map[string]*catalog.Video
	results    map[string]*catalog.SegmentResult
	segmentErr error
	jobs       map[string]*catalog.Job
	jobOrder   []string
	stats      *catalog.Stats

	lastForce bool
}

var _ catalog.SegmentationService = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{
		videos:  make(map[string]*catalog.Video),
		results: make(map[string]*catalog.SegmentResult),
		jobs:    make(map[string]*catalog.Job),
		stats:   &catalog.Stats{},
	}
}

func (f *fakeService) Transcript(ctx context.Context, videoID string) (*catalog.Video, error) {
	if videoID == "" {
		return nil, catalog.ErrVideoIDRequired
	}
	v, ok := f.videos[videoID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, transcript.ErrNotFound)
	}
	return v, nil
}

func (f *fakeService) Segment(ctx context.Context, videoID string, force bool, progress func(segmentation.ChunkEvent)) (*catalog.SegmentResult, error) {
	f.lastForce = force
	if f.segmentErr != nil {
		return nil, f.segmentErr
	}
	res, ok := f.results[videoID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, transcript.ErrNotFound)
	}
	return res, nil
}

func (f *fakeService) segments(videoID string) []segmentation.Segment {
	res, ok := f.results[videoID]
	if !ok {
		return nil
	}
	return res.Segmentation.Segments
}

func (f *fakeService) SegmentsByTime(ctx context.Context, videoID string, start, end float64) ([]segmentation.Segment, error) {
	var out []segmentation.Segment
	for _, s := range f.segments(videoID) {
		if s.StartTime <= end && s.EndTime >= start {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeService) SegmentAt(ctx context.Context, videoID string, at float64) (*segmentation.Segment, error) {
	for _, s := range f.segments(videoID) {
		if s.StartTime <= at && at < s.EndTime {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeService) SearchSegments(ctx context.Context, videoID, query string) ([]segmentation.Segment, error) {
	var out []segmentation.Segment
	for _, s := range f.segments(videoID) {
		if s.Title == query {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeService) LatestSegmentation(ctx context.Context, videoID string) (*segmentation.Segmentation, error) {
	res, ok := f.results[videoID]
	if !ok {
		return nil, nil
	}
	return res.Segmentation, nil
}

func (f *fakeService) TranscriptRange(ctx context.Context, videoID string, start, end float64) ([]transcript.Snippet, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return nil, nil
	}
	var out []transcript.Snippet
	for _, sn := range v.Transcript {
		if sn.Start >= start && sn.Start < end {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (f *fakeService) Stats(ctx context.Context) (*catalog.Stats, error) {
	return f.stats, nil
}

func (f *fakeService) CountVideos(ctx context.Context) (int, error) {
	return len(f.videos), nil
}

func (f *fakeService) CreateSegmentJob(ctx context.Context, videoID string, force bool) (*catalog.Job, error) {
	if videoID == "" {
		return nil, catalog.ErrVideoIDRequired
	}
	now := time.Now()
	job := &catalog.Job{
		ID:        fmt.Sprintf("job-%d", len(f.jobs)+1),
		Type:      catalog.JobTypeSegment,
		Status:    catalog.JobStatusPending,
		VideoID:   videoID,
		Force:     force,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.addJob(job)
	return job, nil
}

func (f *fakeService) addJob(job *catalog.Job) {
	f.jobs[job.ID] = job
	f.jobOrder = append(f.jobOrder, job.ID)
}

func (f *fakeService) GetJob(ctx context.Context, id string) (*catalog.Job, error) {
	return f.jobs[id], nil
}

func (f *fakeService) ListJobs(ctx context.Context, limit int) ([]*catalog.Job, error) {
	var out []*catalog.Job
	for i := len(f.jobOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.jobs[f.jobOrder[i]])
	}
	return out, nil
}

type fakeRunner struct {
	paused bool
	busy   bool
}

func (r *fakeRunner) IsPaused() bool { return r.paused }
func (r *fakeRunner) IsBusy() bool   { return r.busy }

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(svc *fakeService) ServerConfig {
	return ServerConfig{
		Port:       0,
		Service:    svc,
		Hub:        catalog.NewProgressHub(),
		Runner:     &fakeRunner{},
		Database:   fakePinger{},
		Logger:     testLogger(),
		StartTime:  time.Now().Add(-time.Minute),
		Version:    "test",
		InstanceID: "inst-1",
	}
}

// cookingResult is a complete two segment result for video "abc".
func cookingResult() *catalog.SegmentResult {
	return &catalog.SegmentResult{
		Segmentation: &segmentation.Segmentation{
			VideoID:       "abc",
			OverallTopic:  "Cooking",
			TotalSegments: 2,
			Segments: []segmentation.Segment{
				{Title: "Knife skills", StartTime: 0, EndTime: 300, Summary: "Holding the knife", KeyTopics: []string{"knives"}},
				{Title: "Sauces", StartTime: 300, EndTime: 600, Summary: "Mother sauces", KeyTopics: []string{"roux"}, Difficulty: segmentation.DifficultyHard},
			},
		},
		SegmentationID:   7,
		ProcessingStatus: catalog.StatusComplete,
		ChunksProcessed:  1,
		TotalChunks:      1,
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}
