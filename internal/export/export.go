// Package export renders segmentations as chapter lists and edit decision
// lists.
package export

import (
	"fmt"
	"strings"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/timecode"
)

const (
	FormatChapters = "chapters"
	FormatEDL      = "edl"
)

// maxTitleLen bounds exported segment titles.
const maxTitleLen = 100

// ContentType returns the MIME type of an export format.
func ContentType(format string) (string, error) {
	switch format {
	case FormatChapters:
		return "text/plain; charset=utf-8", nil
	case FormatEDL:
		return "application/x-edl; charset=utf-8", nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// Chapters renders one "MM:SS Title" line per segment, in segment order.
// Timestamps switch to HH:MM:SS past the first hour.
func Chapters(seg *segmentation.Segmentation) string {
	if seg == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range seg.Segments {
		b.WriteString(timecode.Format(s.StartTime))
		b.WriteByte(' ')
		b.WriteString(SanitizeTitle(s.Title, maxTitleLen))
		b.WriteByte('\n')
	}
	return b.String()
}

// Filename is the download name for an export of videoID.
func Filename(videoID, format string) string {
	name := sanitizeFilename(videoID, 64)
	if name == "" {
		name = "segmentation"
	}
	if format == FormatEDL {
		return name + ".edl"
	}
	return name + "_chapters.txt"
}
