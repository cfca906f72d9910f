// Package metrics holds the Prometheus instruments of one facility. Each
// facility owns its registry so several can live in one process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink results
const (
	ResultWritten = "written"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Suppression reasons
const (
	ReasonEmpty     = "empty"
	ReasonThreshold = "threshold"
)

type Metrics struct {
	registry *prometheus.Registry

	EntriesTotal     *prometheus.CounterVec
	SuppressedTotal  *prometheus.CounterVec
	SinkEntriesTotal *prometheus.CounterVec
	ReconfigureTotal *prometheus.CounterVec
	ArchivesTotal    prometheus.Counter
	DBBatchDuration  prometheus.Histogram
	TraceSubscribers prometheus.Gauge
}

// New registers every instrument on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsmith_entries_total",
				Help: "Entries accepted by the facility",
			},
			[]string{"level"},
		),

		SuppressedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsmith_entries_suppressed_total",
				Help: "Entries discarded before dispatch",
			},
			[]string{"reason"},
		),

		SinkEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsmith_sink_entries_total",
				Help: "Entries handled per sink by result",
			},
			[]string{"sink", "result"},
		),

		ReconfigureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsmith_reconfigurations_total",
				Help: "Sink set swaps by result",
			},
			[]string{"result"},
		),

		ArchivesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "logsmith_archives_total",
				Help: "Monthly file archives created",
			},
		),

		DBBatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "logsmith_db_batch_duration_seconds",
				Help:    "Database sink batch commit duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		TraceSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "logsmith_trace_subscribers",
				Help: "Connected trace stream subscribers",
			},
		),
	}
}

// Registry returns the registry backing these instruments
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so components can run without metrics

func (m *Metrics) Entry(level string) {
	if m != nil {
		m.EntriesTotal.WithLabelValues(level).Inc()
	}
}

func (m *Metrics) Suppressed(reason string) {
	if m != nil {
		m.SuppressedTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SinkResult(sink, result string) {
	if m != nil {
		m.SinkEntriesTotal.WithLabelValues(sink, result).Inc()
	}
}

func (m *Metrics) Reconfigured(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ReconfigureTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Archived() {
	if m != nil {
		m.ArchivesTotal.Inc()
	}
}

func (m *Metrics) ObserveBatch(seconds float64) {
	if m != nil {
		m.DBBatchDuration.Observe(seconds)
	}
}

func (m *Metrics) SubscriberDelta(delta float64) {
	if m != nil {
		m.TraceSubscribers.Add(delta)
	}
}
