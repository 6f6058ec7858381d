package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/topicseg/topicseg-agent/internal/db"
	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return database, repo
}

type fakeSource struct {
	transcripts map[string][]transcript.Snippet
	calls       atomic.Int32
}

func (f *fakeSource) Fetch(ctx context.Context, videoID string) ([]transcript.Snippet, error) {
	f.calls.Add(1)
	snippets, ok := f.transcripts[videoID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, transcript.ErrNotFound)
	}
	return snippets, nil
}

// evenSnippets builds a transcript of 30 second snippets lasting total seconds.
func evenSnippets(total float64) []transcript.Snippet {
	var out []transcript.Snippet
	for start := 0.0; start < total; start += 30 {
		out = append(out, transcript.Snippet{Text: fmt.Sprintf("line at %.0f", start), Start: start, Duration: 30})
	}
	return out
}

type countingSegmenter struct {
	calls atomic.Int32
	fn    func(call int, identifier string) (*segmentation.Segmentation, error)
}

func (c *countingSegmenter) SegmentChunk(ctx context.Context, identifier, window string) (*segmentation.Segmentation, error) {
	n := int(c.calls.Add(1))
	return c.fn(n, identifier)
}

func fullCoverage(end float64) func(int, string) (*segmentation.Segmentation, error) {
	return func(int, string) (*segmentation.Segmentation, error) {
		return &segmentation.Segmentation{
			OverallTopic: "Cooking",
			Segments: []segmentation.Segment{
				{Title: "Knife skills", StartTime: 0, EndTime: end / 2, Summary: "Holding the knife", KeyTopics: []string{"knives"}},
				{Title: "Sauces", StartTime: end / 2, EndTime: end, Summary: "Mother sauces", KeyTopics: []string{"sauce", "roux"}, Difficulty: segmentation.DifficultyHard},
			},
		}, nil
	}
}

func newTestService(t *testing.T, seg segmentation.Segmenter, src transcript.Source) (*Service, Repository) {
	t.Helper()
	_, repo := setupTestDB(t)
	sched, err := segmentation.NewScheduler(seg, segmentation.DefaultOptions(), testLogger())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return NewService(repo, src, sched, nil, ServiceConfig{}, testLogger()), repo
}

func TestService_Transcript_FetchesOnce(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	svc, _ := newTestService(t, &countingSegmenter{fn: fullCoverage(600)}, src)
	ctx := context.Background()

	video, err := svc.Transcript(ctx, "abc")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if video.DurationSeconds != 600 {
		t.Errorf("DurationSeconds = %v, want 600", video.DurationSeconds)
	}
	if video.SnippetCount != 20 {
		t.Errorf("SnippetCount = %d, want 20", video.SnippetCount)
	}

	again, err := svc.Transcript(ctx, "abc")
	if err != nil {
		t.Fatalf("Transcript() second call error = %v", err)
	}
	if len(again.Transcript) != 20 {
		t.Errorf("stored transcript has %d snippets, want 20", len(again.Transcript))
	}
	if src.calls.Load() != 1 {
		t.Errorf("source fetched %d times, want 1", src.calls.Load())
	}
}

func TestService_Transcript_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &countingSegmenter{fn: fullCoverage(600)}, &fakeSource{})

	_, err := svc.Transcript(context.Background(), "missing")
	if !errors.Is(err, transcript.ErrNotFound) {
		t.Errorf("Transcript() error = %v, want ErrNotFound", err)
	}
}

func TestService_Transcript_EmptyID(t *testing.T) {
	svc, _ := newTestService(t, &countingSegmenter{fn: fullCoverage(600)}, &fakeSource{})

	if _, err := svc.Transcript(context.Background(), ""); !errors.Is(err, ErrVideoIDRequired) {
		t.Errorf("Transcript() error = %v, want ErrVideoIDRequired", err)
	}
}

func TestService_Segment_ServesCompleteStoredResult(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	seg := &countingSegmenter{fn: fullCoverage(600)}
	svc, _ := newTestService(t, seg, src)
	ctx := context.Background()

	first, err := svc.Segment(ctx, "abc", false, nil)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if first.Cached {
		t.Error("first result should not be cached")
	}
	if first.ProcessingStatus != StatusComplete {
		t.Errorf("ProcessingStatus = %s, want complete", first.ProcessingStatus)
	}
	if first.Segmentation.TotalSegments != 2 {
		t.Errorf("TotalSegments = %d, want 2", first.Segmentation.TotalSegments)
	}

	second, err := svc.Segment(ctx, "abc", false, nil)
	if err != nil {
		t.Fatalf("Segment() second call error = %v", err)
	}
	if !second.Cached {
		t.Error("second result should be served from storage")
	}
	if second.SegmentationID != first.SegmentationID {
		t.Errorf("SegmentationID = %d, want %d", second.SegmentationID, first.SegmentationID)
	}
	if seg.calls.Load() != 1 {
		t.Errorf("segmenter called %d times, want 1", seg.calls.Load())
	}
}

func TestService_Segment_ForceRegenerates(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	seg := &countingSegmenter{fn: fullCoverage(600)}
	svc, _ := newTestService(t, seg, src)
	ctx := context.Background()

	if _, err := svc.Segment(ctx, "abc", false, nil); err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	res, err := svc.Segment(ctx, "abc", true, nil)
	if err != nil {
		t.Fatalf("Segment(force) error = %v", err)
	}
	if res.Cached {
		t.Error("forced result should not be cached")
	}
	if seg.calls.Load() != 2 {
		t.Errorf("segmenter called %d times, want 2", seg.calls.Load())
	}
}

func TestService_Segment_IncompleteStoredResultIsRegenerated(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	seg := &countingSegmenter{fn: func(call int, _ string) (*segmentation.Segmentation, error) {
		if call == 1 {
			return &segmentation.Segmentation{Segments: []segmentation.Segment{{Title: "Only the start", StartTime: 0, EndTime: 100}}}, nil
		}
		return fullCoverage(600)(call, "")
	}}
	svc, _ := newTestService(t, seg, src)
	ctx := context.Background()

	if _, err := svc.Segment(ctx, "abc", false, nil); err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	res, err := svc.Segment(ctx, "abc", false, nil)
	if err != nil {
		t.Fatalf("Segment() second call error = %v", err)
	}
	if res.Cached {
		t.Error("under-covering segmentation must not be served")
	}
	if seg.calls.Load() != 2 {
		t.Errorf("segmenter called %d times, want 2", seg.calls.Load())
	}
	if got := res.Segmentation.LastEnd(); got != 600 {
		t.Errorf("LastEnd() = %v, want 600", got)
	}
}

func TestService_Segment_PartialRunIsStoredAsPartial(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"long": evenSnippets(7500)}}
	var identifiers []string
	seg := &countingSegmenter{fn: func(call int, identifier string) (*segmentation.Segmentation, error) {
		identifiers = append(identifiers, identifier)
		if call == 1 {
			return &segmentation.Segmentation{
				OverallTopic: "Lecture",
				Segments:     []segmentation.Segment{{Title: "Part one", StartTime: 0, EndTime: 3600}},
			}, nil
		}
		return nil, &segmentation.RateLimitedError{}
	}}
	svc, repo := newTestService(t, seg, src)
	ctx := context.Background()

	var events []segmentation.ChunkEvent
	res, err := svc.Segment(ctx, "long", false, func(ev segmentation.ChunkEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if res.ProcessingStatus != StatusPartial {
		t.Errorf("ProcessingStatus = %s, want partial", res.ProcessingStatus)
	}
	if res.ChunksProcessed != 1 || res.TotalChunks != 3 {
		t.Errorf("chunks = %d/%d, want 1/3", res.ChunksProcessed, res.TotalChunks)
	}
	want := "Lecture [Partial: 1/3 chunks processed up to 01:00:00]"
	if res.Segmentation.OverallTopic != want {
		t.Errorf("OverallTopic = %q, want %q", res.Segmentation.OverallTopic, want)
	}
	if len(events) != 2 {
		t.Fatalf("got %d progress events, want 2", len(events))
	}
	if !segmentation.IsRateLimited(events[1].Err) {
		t.Errorf("second event error = %v, want rate limited", events[1].Err)
	}
	if identifiers[1] != "long (part 2)" {
		t.Errorf("identifier = %q, want %q", identifiers[1], "long (part 2)")
	}

	stored, err := repo.GetSegmentation(ctx, "long")
	if err != nil {
		t.Fatalf("GetSegmentation() error = %v", err)
	}
	if stored.ProcessingStatus != StatusPartial || stored.ChunksProcessed != 1 || stored.TotalChunks != 3 {
		t.Errorf("stored = %s %d/%d, want partial 1/3", stored.ProcessingStatus, stored.ChunksProcessed, stored.TotalChunks)
	}
}

func TestService_Segment_RateLimitedShortVideoFails(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	seg := &countingSegmenter{fn: func(int, string) (*segmentation.Segmentation, error) {
		return nil, &segmentation.RateLimitedError{}
	}}
	svc, repo := newTestService(t, seg, src)
	ctx := context.Background()

	_, err := svc.Segment(ctx, "abc", false, nil)
	if !segmentation.IsRateLimited(err) {
		t.Fatalf("Segment() error = %v, want rate limited", err)
	}
	stored, _ := repo.GetSegmentation(ctx, "abc")
	if stored != nil {
		t.Error("failed run should not be stored")
	}
}

func TestService_SegmentQueries(t *testing.T) {
	src := &fakeSource{transcripts: map[string][]transcript.Snippet{"abc": evenSnippets(600)}}
	svc, _ := newTestService(t, &countingSegmenter{fn: fullCoverage(600)}, src)
	ctx := context.Background()

	if _, err := svc.Segment(ctx, "abc", false, nil); err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	at, err := svc.SegmentAt(ctx, "abc", 450)
	if err != nil {
		t.Fatalf("SegmentAt() error = %v", err)
	}
	if at == nil || at.Title != "Sauces" {
		t.Errorf("SegmentAt(450) = %+v, want Sauces", at)
	}

	byTime, err := svc.SegmentsByTime(ctx, "abc", 200, 100)
	if err != nil {
		t.Fatalf("SegmentsByTime() error = %v", err)
	}
	if len(byTime) != 1 || byTime[0].Title != "Knife skills" {
		t.Errorf("SegmentsByTime(100-200) = %+v, want Knife skills", byTime)
	}

	found, err := svc.SearchSegments(ctx, "abc", "ROUX")
	if err != nil {
		t.Fatalf("SearchSegments() error = %v", err)
	}
	if len(found) != 1 || found[0].Difficulty != segmentation.DifficultyHard {
		t.Errorf("SearchSegments(roux) = %+v, want the hard Sauces segment", found)
	}

	latest, err := svc.LatestSegmentation(ctx, "abc")
	if err != nil {
		t.Fatalf("LatestSegmentation() error = %v", err)
	}
	if latest == nil || len(latest.Segments) != 2 {
		t.Errorf("LatestSegmentation() = %+v, want 2 segments", latest)
	}
	if none, err := svc.LatestSegmentation(ctx, "unknown"); err != nil || none != nil {
		t.Errorf("LatestSegmentation(unknown) = %+v, %v, want nil, nil", none, err)
	}

	lines, err := svc.TranscriptRange(ctx, "abc", 60, 120)
	if err != nil {
		t.Fatalf("TranscriptRange() error = %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("TranscriptRange(60-120) returned %d snippets, want 2", len(lines))
	}
}

func TestService_CreateSegmentJob(t *testing.T) {
	svc, repo := newTestService(t, &countingSegmenter{fn: fullCoverage(600)}, &fakeSource{})
	ctx := context.Background()

	if _, err := svc.CreateSegmentJob(ctx, "", false); !errors.Is(err, ErrVideoIDRequired) {
		t.Errorf("CreateSegmentJob(\"\") error = %v, want ErrVideoIDRequired", err)
	}

	job, err := svc.CreateSegmentJob(ctx, "abc", true)
	if err != nil {
		t.Fatalf("CreateSegmentJob() error = %v", err)
	}
	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetJob() = %v, %v", stored, err)
	}
	if stored.Type != JobTypeSegment || stored.Status != JobStatusPending || !stored.Force || stored.VideoID != "abc" {
		t.Errorf("stored job = %+v", stored)
	}
}
