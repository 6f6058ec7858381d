package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.Counter.GetValue()
}

func TestRecordChunkCall(t *testing.T) {
	chunkCallsTotal.Reset()

	RecordChunkCall(OutcomeSuccess, 1.2)
	RecordChunkCall(OutcomeSuccess, 0.4)
	RecordChunkCall(OutcomeRateLimited, 0.1)

	if got := counterValue(t, chunkCallsTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("success calls = %v, want 2", got)
	}
	if got := counterValue(t, chunkCallsTotal.WithLabelValues(OutcomeRateLimited)); got != 1 {
		t.Errorf("rate limited calls = %v, want 1", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	cacheLookupsTotal.Reset()

	RecordCacheLookup("sqlite", CacheStale)

	if got := counterValue(t, cacheLookupsTotal.WithLabelValues("sqlite", CacheStale)); got != 1 {
		t.Errorf("stale lookups = %v, want 1", got)
	}
}

func TestRecordTruncatedWindow(t *testing.T) {
	before := counterValue(t, truncatedWindowsTotal)
	RecordTruncatedWindow()
	if got := counterValue(t, truncatedWindowsTotal); got != before+1 {
		t.Errorf("truncated windows = %v, want %v", got, before+1)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordRun(RunPartial, 12)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "topicseg_run_duration_seconds") {
		t.Error("run duration histogram missing from /metrics output")
	}
}
