// Package metrics provides Prometheus metrics for verification sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsCreatedTotal   prometheus.Counter
	SessionsCompletedTotal *prometheus.CounterVec
	SessionsPending        prometheus.Gauge
	SessionDuration        prometheus.Histogram
	SessionsExpiredTotal   prometheus.Counter
	SessionsPurgedTotal    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_verification_sessions_created_total",
			Help: "Verification sessions created",
		}),
		SessionsCompletedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_verification_sessions_completed_total",
			Help: "Verification sessions completed by terminal status",
		}, []string{"status"}),
		SessionsPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_verification_sessions_pending",
			Help: "Verification sessions awaiting a holder decision",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credex_verification_session_duration_seconds",
			Help:    "Time from session creation to terminal outcome",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		}),
		SessionsExpiredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_verification_sessions_expired_total",
			Help: "Pending sessions failed by the expiry worker",
		}),
		SessionsPurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_verification_sessions_purged_total",
			Help: "Terminal sessions removed after the retention period",
		}),
	}
}

func (m *Metrics) RecordCreated() {
	m.SessionsCreatedTotal.Inc()
	m.SessionsPending.Inc()
}

func (m *Metrics) RecordCompleted(status string, createdAt, completedAt time.Time) {
	m.SessionsCompletedTotal.WithLabelValues(status).Inc()
	m.SessionsPending.Dec()
	m.SessionDuration.Observe(completedAt.Sub(createdAt).Seconds())
}
