// Package metrics provides Prometheus metrics for the holder inbox.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Callback delivery results.
const (
	CallbackDelivered = "delivered"
	CallbackFailed    = "failed"
	CallbackSkipped   = "skipped"
)

type Metrics struct {
	MessagesTotal        *prometheus.CounterVec
	DecisionsTotal       *prometheus.CounterVec
	DecisionReplaysTotal prometheus.Counter
	CallbacksTotal       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_inbox_messages_total",
			Help: "Inbound protocol messages by classified kind",
		}, []string{"kind"}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_inbox_decisions_total",
			Help: "Holder decisions applied, by notification type and action",
		}, []string{"type", "action"}),
		DecisionReplaysTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_inbox_decision_replays_total",
			Help: "Decisions on already decided notifications answered from the stored result",
		}),
		CallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credex_inbox_callbacks_total",
			Help: "Requester callback attempts by result",
		}, []string{"result"}),
	}
}
