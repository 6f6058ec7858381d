package catalog

import (
	"sync"
	"time"
)

// ProgressEvent is published for every state change of a segment job.
type ProgressEvent struct {
	JobID       string    `json:"job_id"`
	VideoID     string    `json:"video_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Chunk       int       `json:"chunk,omitempty"`
	TotalChunks int       `json:"total_chunks,omitempty"`
	ChunkStart  float64   `json:"chunk_start,omitempty"`
	ChunkEnd    float64   `json:"chunk_end,omitempty"`
	Segments    int       `json:"segments,omitempty"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

// Terminal reports whether no further events follow for the job.
func (e ProgressEvent) Terminal() bool {
	return e.Status == JobStatusCompleted || e.Status == JobStatusFailed
}

const subscriberBuffer = 32

// ProgressHub fans job progress out to subscribers. Slow subscribers lose
// events instead of blocking the runner.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe returns a channel of events for jobID and a func that
// unsubscribes and closes the channel.
func (h *ProgressHub) Subscribe(jobID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[jobID], ch)
			if len(h.subs[jobID]) == 0 {
				delete(h.subs, jobID)
			}
			close(ch)
		})
	}
}

func (h *ProgressHub) Publish(ev ProgressEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of subscribers of a job.
func (h *ProgressHub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
