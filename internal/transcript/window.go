package transcript

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/topicseg/topicseg-agent/internal/timecode"
)

const (
	// DefaultMaxChars bounds the text submitted to a single segmenter call.
	DefaultMaxChars = 15000

	// TruncationMarker terminates a window that ran out of character budget.
	TruncationMarker = "... [transcript truncated for length] ..."
)

// Window renders the snippets with start <= Start < end as "[MM:SS] text"
// lines (HH:MM:SS from one hour on). Rendering stops at the first line that
// would push the running count past maxChars; the truncation marker is
// appended in its place and the remaining snippets are dropped.
func Window(snippets []Snippet, maxChars int, start, end float64) string {
	var lines []string
	total := 0

	for _, s := range snippets {
		if s.Start < start || s.Start >= end {
			continue
		}

		line := "[" + timecode.Format(s.Start) + "] " + s.Text
		n := utf8.RuneCountInString(line)
		if total+n > maxChars {
			lines = append(lines, TruncationMarker)
			break
		}

		lines = append(lines, line)
		total += n + 1
	}

	return strings.Join(lines, "\n")
}

// WindowAll renders the whole transcript under the given budget.
func WindowAll(snippets []Snippet, maxChars int) string {
	return Window(snippets, maxChars, 0, math.Inf(1))
}

// IsTruncated reports whether a rendered window lost trailing context.
func IsTruncated(window string) bool {
	return strings.HasSuffix(window, TruncationMarker)
}
