package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

// GenerateEDL renders the segments as a CMX3600 edit decision list against
// a single source reel, one event per segment. Record timecodes run
// back to back.
func GenerateEDL(seg *segmentation.Segmentation, mediaPath string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	title := ""
	if seg != nil {
		title = SanitizeTitle(seg.OverallTopic, maxTitleLen)
		if title == "" {
			title = SanitizeTitle(seg.VideoID, maxTitleLen)
		}
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	if seg != nil {
		var record float64
		event := 0
		for _, s := range seg.Segments {
			duration := s.EndTime - s.StartTime
			if duration <= 0 {
				continue
			}
			event++
			lines = append(lines,
				fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", event, "AX", "V",
					secondsToTimecode(s.StartTime, fps), secondsToTimecode(s.EndTime, fps),
					secondsToTimecode(record, fps), secondsToTimecode(record+duration, fps)),
				fmt.Sprintf("* FROM CLIP NAME:  %s", SanitizeTitle(s.Title, maxTitleLen)),
			)
			if mediaPath != "" {
				lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", mediaPath))
			}
			record += duration
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(sec float64, fps int) string {
	if sec < 0 {
		sec = 0
	}
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
