// Package metrics exposes Prometheus counters for the log pipeline.
//
// Metrics include:
//
//   - log entries emitted, by type
//   - sink write failures, by sink
//   - masking fallback invocations
//
// Metrics are exposed at /metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crudgate"

// Metrics holds the pipeline counters and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	entries         *prometheus.CounterVec
	sinkFailures    *prometheus.CounterVec
	maskingFallback prometheus.Counter
}

// New creates the counters and registers them, together with the Go runtime
// and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "entries_total",
			Help:      "Log entries emitted by the pipeline, by log type",
		}, []string{"type"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "sink_failures_total",
			Help:      "Log entries a sink failed to write, by sink",
		}, []string{"sink"}),
		maskingFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "masking",
			Name:      "fallback_total",
			Help:      "Masking calls that took the regex fallback path because the input was not valid JSON",
		}),
	}

	m.registry.MustRegister(
		m.entries,
		m.sinkFailures,
		m.maskingFallback,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// EntryEmitted counts one entry of the given type.
func (m *Metrics) EntryEmitted(logType string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(logType).Inc()
}

// SinkFailed counts one failed write on the named sink.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// MaskingFallback counts one fallback invocation. It matches the signature
// expected by masking.WithFallbackHook.
func (m *Metrics) MaskingFallback() {
	if m == nil {
		return
	}
	m.maskingFallback.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
