package segmentation

// DefaultMinCoverage is the fraction of the true duration the last segment
// must reach for a stored segmentation to be served as is.
const DefaultMinCoverage = 0.95

// IsCoverageComplete reports whether seg's last segment end reaches
// minCoverage of trueDuration. It is false for an empty segmentation or an
// unknown (non-positive) duration.
func IsCoverageComplete(seg *Segmentation, trueDuration, minCoverage float64) bool {
	if seg == nil || len(seg.Segments) == 0 || trueDuration <= 0 {
		return false
	}
	return Coverage(seg, trueDuration) >= minCoverage
}

// Coverage is the last segment end divided by trueDuration, 0 when the
// duration is unknown.
func Coverage(seg *Segmentation, trueDuration float64) float64 {
	if trueDuration <= 0 {
		return 0
	}
	return seg.LastEnd() / trueDuration
}
