// Package timecode converts between seconds and the human readable
// timestamps used in transcript windows, partial-progress annotations and
// chapter exports.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders seconds as HH:MM:SS, or MM:SS when under one hour.
// Fractional seconds are truncated.
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Parse is the inverse of Format. It accepts SS, MM:SS and HH:MM:SS,
// optionally wrapped in square brackets.
func Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	var total float64
	for i, p := range parts {
		// only the trailing seconds field may carry a fraction
		if i < len(parts)-1 {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid timestamp %q", s)
			}
			total = total*60 + float64(n)
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + f
	}
	return total, nil
}

// Humanize renders a duration as "X hours Y minutes Z seconds", omitting
// zero components. Zero renders as "0 seconds".
func Humanize(seconds float64) string {
	if seconds <= 0 {
		return "0 seconds"
	}

	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, plural(secs, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
