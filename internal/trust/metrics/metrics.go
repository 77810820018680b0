// Package metrics provides Prometheus metrics for trust registry lookups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultTrusted   = "trusted"
	ResultUntrusted = "untrusted"
	ResultError     = "error"
)

type Metrics struct {
	LookupsTotal          *prometheus.CounterVec
	LookupDurationSeconds prometheus.Histogram
	AdminChangesTotal     *prometheus.CounterVec
	CircuitOpen           prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_trust_lookups_total",
			Help: "Trust registry lookups by result",
		}, []string{"result"}),
		LookupDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credex_trust_lookup_duration_seconds",
			Help:    "Duration of trust registry lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AdminChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_trust_admin_changes_total",
			Help: "Trusted issuer additions and removals",
		}, []string{"operation"}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_trust_circuit_open",
			Help: "1 while the remote trust registry circuit is open",
		}),
	}
}

func (m *Metrics) ObserveLookup(start time.Time, result string) {
	m.LookupDurationSeconds.Observe(time.Since(start).Seconds())
	m.LookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordChange(operation string) {
	m.AdminChangesTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
