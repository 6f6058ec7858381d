package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/timecode"
)

// StubSegmenter segments windows without a model: it cuts the window into
// fixed spans and labels each by its most frequent words. It stands in for
// Client when no API key is configured.
type StubSegmenter struct {
	// Span is the length of each segment in seconds. Defaults to 600.
	Span float64
}

var _ segmentation.Segmenter = (*StubSegmenter)(nil)

type stubLine struct {
	at   float64
	text string
}

func (s *StubSegmenter) SegmentChunk(ctx context.Context, identifier, window string) (*segmentation.Segmentation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	span := s.Span
	if span <= 0 {
		span = 600
	}

	lines := parseWindow(window)
	if len(lines) == 0 {
		return segmentation.NewSegmentation(identifier, "", nil), nil
	}

	var segments []segmentation.Segment
	var group []stubLine
	flush := func(end float64) {
		if len(group) == 0 {
			return
		}
		if end <= group[0].at {
			end = group[0].at + 1
		}
		topics := topWords(group, 3)
		title := "Untitled section"
		if len(topics) > 0 {
			title = strings.Join(topics, ", ")
		}
		segments = append(segments, segmentation.Segment{
			Title:      title,
			StartTime:  group[0].at,
			EndTime:    end,
			Summary:    summarize(group),
			KeyTopics:  topics,
			Difficulty: segmentation.DifficultyMedium,
		})
		group = nil
	}

	for _, l := range lines {
		if len(group) > 0 && l.at-group[0].at >= span {
			flush(l.at)
		}
		group = append(group, l)
	}
	flush(lines[len(lines)-1].at + 1)

	overall := ""
	if words := topWords(lines, 1); len(words) > 0 {
		overall = words[0]
	}
	return segmentation.NewSegmentation(identifier, overall, segments), nil
}

// parseWindow reads "[timestamp] text" lines, skipping anything else such
// as the truncation marker.
func parseWindow(window string) []stubLine {
	var out []stubLine
	for _, raw := range strings.Split(window, "\n") {
		if !strings.HasPrefix(raw, "[") {
			continue
		}
		end := strings.Index(raw, "]")
		if end < 0 {
			continue
		}
		at, err := timecode.Parse(raw[:end+1])
		if err != nil {
			continue
		}
		out = append(out, stubLine{at: at, text: strings.TrimSpace(raw[end+1:])})
	}
	return out
}

func topWords(lines []stubLine, n int) []string {
	counts := make(map[string]int)
	for _, l := range lines {
		for _, w := range strings.FieldsFunc(strings.ToLower(l.text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if len([]rune(w)) < 5 {
				continue
			}
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func summarize(lines []stubLine) string {
	var b strings.Builder
	for _, l := range lines {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(l.text)
		if b.Len() >= 200 {
			break
		}
	}
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(b.String()), timecode.Format(lines[0].at))
}
