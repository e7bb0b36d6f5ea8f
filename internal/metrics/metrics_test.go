package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveExtraction("market_analysis", "fenced", "ok")
	m.ObserveExtraction("market_analysis", "fenced", "ok")
	m.ObserveStep("landscape", "completed")
	m.ObserveModelRequest("mock", "ok", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.extractions.WithLabelValues("market_analysis", "fenced", "ok")); got != 2 {
		t.Errorf("extractions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.steps.WithLabelValues("landscape", "completed")); got != 1 {
		t.Errorf("steps = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bookmarketer_model_request_duration_seconds") {
		t.Errorf("exposition missing histogram:\n%s", rec.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveExtraction("x", "direct", "ok")
	m.ObserveStep("x", "completed")
	m.ObserveModelRequest("x", "ok", time.Second)
}
