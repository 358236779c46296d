// Package metrics provides Prometheus instrumentation for the dossier store.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Import results.
const (
	ImportOK       = "ok"
	ImportRejected = "rejected"
)

// Metrics holds the application collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	KVFailures         *prometheus.CounterVec
	StepWrites         *prometheus.CounterVec
	Imports            *prometheus.CounterVec
	AutosaveFlushes    prometheus.Counter
	MigrationFallbacks *prometheus.CounterVec
}

// New creates a registry with the application metrics plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		KVFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rhs_kv_failures_total",
			Help: "Storage operations that failed and were absorbed",
		}, []string{"backend", "op"}),
		StepWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rhs_step_writes_total",
			Help: "Step payloads written, by step id",
		}, []string{"step"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rhs_imports_total",
			Help: "Dossier imports by result",
		}, []string{"result"}),
		AutosaveFlushes: f.NewCounter(prometheus.CounterOpts{
			Name: "rhs_autosave_flushes_total",
			Help: "Debounced draft writes executed",
		}),
		MigrationFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rhs_migration_fallbacks_total",
			Help: "Step payloads that could not be migrated and fell back to defaults",
		}, []string{"step"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// KVFailure records an absorbed storage failure.
func (m *Metrics) KVFailure(backend, op string) {
	if m == nil {
		return
	}
	m.KVFailures.WithLabelValues(backend, op).Inc()
}

// StepWrite records a persisted step payload.
func (m *Metrics) StepWrite(step string) {
	if m == nil {
		return
	}
	m.StepWrites.WithLabelValues(step).Inc()
}

// Import records an import attempt.
func (m *Metrics) Import(ok bool) {
	if m == nil {
		return
	}
	result := ImportOK
	if !ok {
		result = ImportRejected
	}
	m.Imports.WithLabelValues(result).Inc()
}

// AutosaveFlush records an executed draft write.
func (m *Metrics) AutosaveFlush() {
	if m == nil {
		return
	}
	m.AutosaveFlushes.Inc()
}

// MigrationFallback records a step read that fell back to defaults.
func (m *Metrics) MigrationFallback(step string) {
	if m == nil {
		return
	}
	m.MigrationFallbacks.WithLabelValues(step).Inc()
}
