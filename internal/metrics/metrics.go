// Package metrics provides Prometheus metrics for segmentation runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Run results.
const (
	RunComplete = "complete"
	RunPartial  = "partial"
	RunFailed   = "failed"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

var (
	// chunkCallsTotal counts segmenter calls.
	// Labels:
	//   - outcome: success, rate_limited, error
	chunkCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicseg_chunk_calls_total",
			Help: "Total number of segmenter calls, one per transcript chunk",
		},
		[]string{"outcome"},
	)

	chunkCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topicseg_chunk_call_duration_seconds",
			Help:    "Duration of a single segmenter call in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	// runDuration records whole scheduling runs.
	// Labels:
	//   - result: complete, partial, failed
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topicseg_run_duration_seconds",
			Help:    "Duration of segmentation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"result"},
	)

	truncatedWindowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topicseg_truncated_windows_total",
			Help: "Transcript windows cut short by the character budget",
		},
	)

	// cacheLookupsTotal counts stored segmentation lookups.
	// Labels:
	//   - layer: redis, sqlite
	//   - result: hit, miss, stale
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicseg_cache_lookups_total",
			Help: "Stored segmentation lookups by layer and result",
		},
		[]string{"layer", "result"},
	)
)

func init() {
	prometheus.MustRegister(chunkCallsTotal)
	prometheus.MustRegister(chunkCallDuration)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(truncatedWindowsTotal)
	prometheus.MustRegister(cacheLookupsTotal)
}

// RecordChunkCall records one segmenter call and its latency.
func RecordChunkCall(outcome string, durationSeconds float64) {
	chunkCallsTotal.WithLabelValues(outcome).Inc()
	chunkCallDuration.Observe(durationSeconds)
}

// RecordRun records a finished scheduling run.
func RecordRun(result string, durationSeconds float64) {
	runDuration.WithLabelValues(result).Observe(durationSeconds)
}

// RecordTruncatedWindow counts a window that hit the character budget.
func RecordTruncatedWindow() {
	truncatedWindowsTotal.Inc()
}

// RecordCacheLookup records a lookup against a cache layer.
func RecordCacheLookup(layer, result string) {
	cacheLookupsTotal.WithLabelValues(layer, result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
