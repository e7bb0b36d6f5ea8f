// Package metrics exposes Prometheus collectors for model calls, extraction
// outcomes and step completions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookmarketer"

type Metrics struct {
	extractions   *prometheus.CounterVec
	modelRequests *prometheus.HistogramVec
	steps         *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Model answers run through the extraction engine, by shape, recovery method and outcome.",
		}, []string{"shape", "method", "outcome"}),
		modelRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of calls to the model capability.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_invocations_total",
			Help:      "Step invocations by step and outcome class.",
		}, []string{"step", "outcome"}),
	}
}

func (m *Metrics) ObserveExtraction(shape, method, outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(shape, method, outcome).Inc()
}

func (m *Metrics) ObserveModelRequest(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelRequests.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStep(step, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
