package segmentation

import (
	"sort"
	"strings"
)

const (
	// DefaultAdjacency is the largest gap, in seconds, between two segments
	// that may still be treated as one topic split across chunks.
	DefaultAdjacency = 300.0

	// ContinuationSimilarity is the minimum topic Jaccard index for adjacent
	// segments to merge.
	ContinuationSimilarity = 0.5
)

var continuationMarkers = []string{
	"continued",
	"continuation",
	"part 2",
	"part two",
	"part 3",
	"(cont",
	"- cont",
}

// Merge sorts segments by start time and folds together overlapping
// duplicates and continuations of the same topic. The input slice is not
// modified. Fewer than two segments are returned unchanged.
func Merge(segments []Segment, adjacency float64) []Segment {
	if len(segments) < 2 {
		return segments
	}

	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	merged := make([]Segment, 0, len(sorted))
	current := sorted[0]

	for _, next := range sorted[1:] {
		if next.StartTime < current.EndTime {
			if next.richness() > current.richness() {
				current = next
			}
			continue
		}

		gap := next.StartTime - current.EndTime
		if (gap <= adjacency && Jaccard(current.KeyTopics, next.KeyTopics) >= ContinuationSimilarity) ||
			hasContinuationMarker(next.Title) {
			current = join(current, next)
			continue
		}

		merged = append(merged, current)
		current = next
	}

	return append(merged, current)
}

// Jaccard returns |A∩B| / |A∪B| over case-folded topics. It is 0 when
// either set is empty.
func Jaccard(a, b []string) float64 {
	setA := topicSet(a)
	setB := topicSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func topicSet(topics []string) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}

func hasContinuationMarker(title string) bool {
	lower := strings.ToLower(title)
	for _, m := range continuationMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// join builds the segment spanning current and next. Title and difficulty
// come from current.
func join(current, next Segment) Segment {
	return Segment{
		Title:      current.Title,
		StartTime:  current.StartTime,
		EndTime:    next.EndTime,
		Summary:    strings.TrimSpace(current.Summary + " " + next.Summary),
		KeyTopics:  unionTopics(current.KeyTopics, next.KeyTopics),
		Difficulty: current.Difficulty,
	}
}

// unionTopics keeps the first occurrence of each exact topic string.
func unionTopics(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
