package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.EntryEmitted("request")
	m.EntryEmitted("request")
	m.EntryEmitted("audit")
	m.SinkFailed("database")
	m.MaskingFallback()
	m.MaskingFallback()

	if got := testutil.ToFloat64(m.entries.WithLabelValues("request")); got != 2 {
		t.Errorf("request entries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.entries.WithLabelValues("audit")); got != 1 {
		t.Errorf("audit entries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sinkFailures.WithLabelValues("database")); got != 1 {
		t.Errorf("sink failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.maskingFallback); got != 2 {
		t.Errorf("fallbacks = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EntryEmitted("request")
	m.SinkFailed("logger")
	m.MaskingFallback()
}

func TestHandler(t *testing.T) {
	m := New()
	m.MaskingFallback()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "crudgate_masking_fallback_total 1") {
		t.Errorf("fallback counter missing from exposition:\n%s", body)
	}
}
