// Package metrics provides Prometheus metrics for the credential store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains credential store metrics.
type Metrics struct {
	StoredCredentials    prometheus.Gauge
	MutationsTotal       *prometheus.CounterVec
	PersistDuration      prometheus.Histogram
	PersistFailuresTotal prometheus.Counter
}

// New registers the credential metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoredCredentials: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_credentials_stored",
			Help: "Number of credentials currently held in the store",
		}),
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_credential_mutations_total",
			Help: "Committed credential store mutations by operation",
		}, []string{"operation"}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credex_credential_persist_duration_seconds",
			Help:    "Duration of whole-collection saves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		PersistFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_credential_persist_failures_total",
			Help: "Whole-collection saves that failed and were rolled back",
		}),
	}
}

func (m *Metrics) ObservePersist(start time.Time, err error) {
	m.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.PersistFailuresTotal.Inc()
	}
}

func (m *Metrics) RecordMutation(operation string, stored int) {
	m.MutationsTotal.WithLabelValues(operation).Inc()
	m.StoredCredentials.Set(float64(stored))
}
