package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publisher.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsDropped   prometheus.Counter
	EventsEnqueued  prometheus.Counter
	EventsProcessed prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the audit publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_audit_queue_depth",
			Help: "Current number of events in the audit publisher queue",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to full buffer",
		}),
		EventsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_audit_events_enqueued_total",
			Help: "Total number of audit events successfully enqueued",
		}),
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_audit_events_processed_total",
			Help: "Total number of audit events persisted",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credex_audit_persist_duration_seconds",
			Help:    "Time taken to persist an audit event to the store",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
