package export

import (
	"strings"
	"unicode"
)

// punctuationFolder maps typographic punctuation and path separators to
// ASCII.
var punctuationFolder = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", "'", "”", "'", `"`, "'",
	"–", "-", "—", "-",
	"…", "...",
	"/", "-", `\`, "-",
)

// SanitizeTitle makes a segment title safe for single-line text exports.
// Runs of whitespace, line breaks included, become one space; control
// characters are dropped; anything outside the allowed set becomes '_'.
// The result is cut to maxLen runes when maxLen > 0.
func SanitizeTitle(s string, maxLen int) string {
	s = punctuationFolder.Replace(s)

	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		if isAllowedTitleRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	return truncateRunes(b.String(), maxLen)
}

// sanitizeFilename keeps letters, digits, '-', '_' and '.'; everything else
// becomes '_'.
func sanitizeFilename(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(truncateRunes(b.String(), maxLen), "._")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}

func isAllowedTitleRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')', ':', '&', '\'', '!', '?', '+', '#':
		return true
	default:
		return false
	}
}
