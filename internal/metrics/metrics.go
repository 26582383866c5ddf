// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets are millisecond buckets for step latencies.
var LatencyBuckets = []float64{10, 50, 100, 250, 500, 1000, 2000, 5000, 10000}

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	JobsEnqueued     prometheus.Counter
	JobsCompleted    *prometheus.CounterVec
	StepLatency      *prometheus.HistogramVec
	EmbeddingBackend *prometheus.CounterVec
	ExtractionMode   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "docground_jobs_enqueued_total",
			Help: "Jobs accepted into the queue",
		}),
		JobsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docground_jobs_completed_total",
			Help: "Jobs finished, by outcome",
		}, []string{"status"}),
		StepLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docground_step_latency_ms",
			Help:    "Per-step processing latency in milliseconds",
			Buckets: LatencyBuckets,
		}, []string{"step", "template"}),
		EmbeddingBackend: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docground_embedding_backend_total",
			Help: "Retrieval indexes built, by embedding backend",
		}, []string{"backend"}),
		ExtractionMode: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docground_extraction_mode_total",
			Help: "Requests processed, by extraction mode",
		}, []string{"mode"}),
	}
}

// NewRegistry returns a registry with the Go and process collectors and
// the service collectors registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

func (m *Metrics) ObserveStep(step, template string, ms int64) {
	if m == nil {
		return
	}
	m.StepLatency.WithLabelValues(step, template).Observe(float64(ms))
}

func (m *Metrics) JobEnqueued() {
	if m == nil {
		return
	}
	m.JobsEnqueued.Inc()
}

func (m *Metrics) JobCompleted(status string) {
	if m == nil {
		return
	}
	m.JobsCompleted.WithLabelValues(status).Inc()
}

func (m *Metrics) IndexBuilt(backend string) {
	if m == nil {
		return
	}
	m.EmbeddingBackend.WithLabelValues(backend).Inc()
}

func (m *Metrics) ModeSelected(mode string) {
	if m == nil {
		return
	}
	m.ExtractionMode.WithLabelValues(mode).Inc()
}
