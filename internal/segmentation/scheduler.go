package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/topicseg/topicseg-agent/internal/timecode"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

// DefaultOverallTopic is reported when no chunk produced a topic.
const DefaultOverallTopic = "Long video content"

// Options tunes a Scheduler. Zero fields take the package defaults.
type Options struct {
	ChunkDuration   float64
	OverlapDuration float64
	MaxChars        int
	Adjacency       float64
}

// DefaultOptions returns one-hour chunks with five minutes of overlap.
func DefaultOptions() Options {
	return Options{
		ChunkDuration:   DefaultChunkDuration,
		OverlapDuration: DefaultOverlapDuration,
		MaxChars:        transcript.DefaultMaxChars,
		Adjacency:       DefaultAdjacency,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChunkDuration <= 0 {
		o.ChunkDuration = d.ChunkDuration
	}
	if o.OverlapDuration < 0 {
		o.OverlapDuration = d.OverlapDuration
	}
	if o.MaxChars <= 0 {
		o.MaxChars = d.MaxChars
	}
	if o.Adjacency <= 0 {
		o.Adjacency = d.Adjacency
	}
	return o
}

// ChunkEvent describes one finished chunk call.
type ChunkEvent struct {
	VideoID         string
	Chunk           Chunk
	TotalChunks     int
	Kept            int
	WindowTruncated bool
	Elapsed         time.Duration
	Err             error
}

// Scheduler runs a Segmenter over a transcript one chunk at a time.
// A Scheduler holds no per-run state and may be shared between goroutines.
type Scheduler struct {
	segmenter Segmenter
	opts      Options
	logger    *slog.Logger
}

func NewScheduler(segmenter Segmenter, opts Options, logger *slog.Logger) (*Scheduler, error) {
	opts = opts.withDefaults()
	if opts.OverlapDuration >= opts.ChunkDuration {
		return nil, fmt.Errorf("overlap %.0fs must be shorter than chunk %.0fs", opts.OverlapDuration, opts.ChunkDuration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		segmenter: segmenter,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Options returns the effective options.
func (s *Scheduler) Options() Options { return s.opts }

// Schedule segments the whole transcript. A transcript that fits in one
// chunk is segmented with a single call and no merge. Longer transcripts
// are chunked; a rate-limited chunk ends the run early and the segments
// gathered so far are returned with a partial annotation on the overall
// topic. Any other segmenter failure aborts the run.
func (s *Scheduler) Schedule(ctx context.Context, videoID string, snippets []transcript.Snippet) (*Segmentation, Outcome, error) {
	return s.ScheduleWithProgress(ctx, videoID, snippets, nil)
}

// ScheduleWithProgress is Schedule with a per-run callback invoked after
// every chunk call, in chunk order.
func (s *Scheduler) ScheduleWithProgress(ctx context.Context, videoID string, snippets []transcript.Snippet, progress func(ChunkEvent)) (*Segmentation, Outcome, error) {
	if len(snippets) == 0 {
		return nil, Outcome{}, ErrEmptyInput
	}

	total := transcript.TotalDuration(snippets)
	if total <= s.opts.ChunkDuration {
		return s.scheduleSingle(ctx, videoID, snippets, progress)
	}

	plan := Plan(total, s.opts.ChunkDuration, s.opts.OverlapDuration)
	outcome := Outcome{TotalChunks: len(plan)}
	overallTopic := DefaultOverallTopic
	var accumulated []Segment

	s.logger.Info("chunked segmentation started",
		"video_id", videoID,
		"duration", timecode.Format(total),
		"chunks", len(plan),
	)

	for _, chunk := range plan {
		window := transcript.Window(snippets, s.opts.MaxChars, chunk.Start, chunk.End)
		identifier := fmt.Sprintf("%s (part %d)", videoID, chunk.Index)

		s.logger.Debug("processing chunk",
			"video_id", videoID,
			"chunk", chunk.Index,
			"of", len(plan),
			"start", timecode.Format(chunk.Start),
			"end", timecode.Format(chunk.End),
		)

		outcome.ChunksAttempted++
		began := time.Now()
		result, err := s.segmenter.SegmentChunk(ctx, identifier, window)
		event := ChunkEvent{
			VideoID:         videoID,
			Chunk:           chunk,
			TotalChunks:     len(plan),
			WindowTruncated: transcript.IsTruncated(window),
			Elapsed:         time.Since(began),
			Err:             err,
		}

		if err != nil {
			s.notify(event, progress)
			if IsRateLimited(err) {
				outcome.Truncated = true
				s.logger.Warn("rate limited, returning partial results",
					"video_id", videoID,
					"chunk", chunk.Index,
					"chunks_processed", outcome.ChunksSucceeded,
				)
				break
			}
			return nil, outcome, fmt.Errorf("segment chunk %d/%d: %w", chunk.Index, len(plan), err)
		}

		if result == nil {
			result = &Segmentation{}
		}
		if outcome.ChunksSucceeded == 0 && result.OverallTopic != "" {
			overallTopic = result.OverallTopic
		}

		boundary := chunk.Start + s.opts.OverlapDuration
		for _, seg := range result.Segments {
			// later chunks drop segments that start inside the shared overlap
			if chunk.Index > 1 && seg.StartTime < boundary {
				continue
			}
			seg.Difficulty = seg.Difficulty.OrDefault()
			accumulated = append(accumulated, seg)
			event.Kept++
		}

		outcome.ChunksSucceeded++
		s.notify(event, progress)
	}

	merged := Merge(accumulated, s.opts.Adjacency)

	if outcome.ChunksSucceeded < outcome.TotalChunks {
		outcome.Truncated = true
		var processedUpTo float64
		if len(accumulated) > 0 {
			processedUpTo = accumulated[len(accumulated)-1].EndTime
		}
		overallTopic = PartialAnnotation(overallTopic, outcome.ChunksSucceeded, outcome.TotalChunks, processedUpTo)
	}

	s.logger.Info("chunked segmentation finished",
		"video_id", videoID,
		"segments", len(merged),
		"chunks_processed", outcome.ChunksSucceeded,
		"chunks_total", outcome.TotalChunks,
		"truncated", outcome.Truncated,
	)

	return NewSegmentation(videoID, overallTopic, merged), outcome, nil
}

func (s *Scheduler) scheduleSingle(ctx context.Context, videoID string, snippets []transcript.Snippet, progress func(ChunkEvent)) (*Segmentation, Outcome, error) {
	window := transcript.WindowAll(snippets, s.opts.MaxChars)
	outcome := Outcome{ChunksAttempted: 1, TotalChunks: 1}
	chunk := Chunk{Index: 1, Start: 0, End: transcript.TotalDuration(snippets)}

	began := time.Now()
	result, err := s.segmenter.SegmentChunk(ctx, videoID, window)
	event := ChunkEvent{
		VideoID:         videoID,
		Chunk:           chunk,
		TotalChunks:     1,
		WindowTruncated: transcript.IsTruncated(window),
		Elapsed:         time.Since(began),
		Err:             err,
	}
	if err != nil {
		s.notify(event, progress)
		outcome.Truncated = IsRateLimited(err)
		return nil, outcome, fmt.Errorf("segment video: %w", err)
	}

	if result == nil {
		result = &Segmentation{}
	}
	segments := make([]Segment, len(result.Segments))
	for i, seg := range result.Segments {
		seg.Difficulty = seg.Difficulty.OrDefault()
		segments[i] = seg
	}
	event.Kept = len(segments)
	outcome.ChunksSucceeded = 1
	s.notify(event, progress)

	return NewSegmentation(videoID, result.OverallTopic, segments), outcome, nil
}

func (s *Scheduler) notify(ev ChunkEvent, progress func(ChunkEvent)) {
	if progress != nil {
		progress(ev)
	}
}

// PartialAnnotation appends the progress marker carried by truncated runs:
// "<topic> [Partial: X/Y chunks processed up to HH:MM:SS]".
func PartialAnnotation(topic string, processed, total int, upTo float64) string {
	return fmt.Sprintf("%s [Partial: %d/%d chunks processed up to %s]", topic, processed, total, timecode.Format(upTo))
}
