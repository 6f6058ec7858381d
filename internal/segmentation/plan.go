package segmentation

import "math"

const (
	DefaultChunkDuration   = 3600.0
	DefaultOverlapDuration = 300.0
)

// Chunk is one time window of a scheduling run. Index is 1-based.
type Chunk struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Plan lays out the chunk windows covering [0, total]. Each window is
// chunkDuration wide, consecutive windows share overlap seconds, and the
// last window is clipped to total. A total that fits in one chunk yields a
// single window. Plan returns nil when total is not positive or the overlap
// is not smaller than the chunk.
func Plan(total, chunkDuration, overlap float64) []Chunk {
	if total <= 0 || chunkDuration <= 0 || overlap < 0 || overlap >= chunkDuration {
		return nil
	}

	var chunks []Chunk
	start := 0.0
	for n := 1; ; n++ {
		end := math.Min(start+chunkDuration, total)
		chunks = append(chunks, Chunk{Index: n, Start: start, End: end})
		if end >= total {
			break
		}
		start = end - overlap
	}
	return chunks
}

// EstimatedChunks is floor((total-overlap)/(chunk-overlap)) + 1. It equals
// len(Plan(...)) except when a window ends exactly on total, where the
// estimate counts one window more than is ever scheduled.
func EstimatedChunks(total, chunkDuration, overlap float64) int {
	if total <= chunkDuration {
		return 1
	}
	return int(math.Floor((total-overlap)/(chunkDuration-overlap))) + 1
}
