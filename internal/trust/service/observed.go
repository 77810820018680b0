package service

import (
	"context"
	"time"

	"credex/internal/trust/metrics"
	"credex/internal/trust/models"
	"credex/pkg/platform/tracer"
)

// Observed wraps a Registry with tracing spans and lookup metrics.
type Observed struct {
	next    Registry
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// NewObserved decorates next. A nil tracer falls back to a no-op tracer; nil
// metrics disables recording.
func NewObserved(next Registry, m *metrics.Metrics, t tracer.Tracer) *Observed {
	if t == nil {
		t = tracer.NewNoop()
	}
	return &Observed{next: next, metrics: m, tracer: t}
}

func (o *Observed) IsTrusted(ctx context.Context, did string) (trusted bool, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, tracer.SpanTrustIsTrusted, tracer.String(tracer.AttrDID, did))
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrTrusted, trusted))
		span.End(err)
		if o.metrics == nil {
			return
		}
		switch {
		case err != nil:
			o.metrics.ObserveLookup(start, metrics.ResultError)
		case trusted:
			o.metrics.ObserveLookup(start, metrics.ResultTrusted)
		default:
			o.metrics.ObserveLookup(start, metrics.ResultUntrusted)
		}
	}()
	return o.next.IsTrusted(ctx, did)
}

func (o *Observed) List(ctx context.Context) ([]models.TrustedIssuer, error) {
	return o.next.List(ctx)
}

func (o *Observed) Add(ctx context.Context, did, name, addedBy string) (*models.TrustedIssuer, error) {
	issuer, err := o.next.Add(ctx, did, name, addedBy)
	if err == nil && o.metrics != nil {
		o.metrics.RecordChange("add")
	}
	return issuer, err
}

func (o *Observed) Remove(ctx context.Context, did string) error {
	err := o.next.Remove(ctx, did)
	if err == nil && o.metrics != nil {
		o.metrics.RecordChange("remove")
	}
	return err
}

var (
	_ Registry = (*LocalRegistry)(nil)
	_ Registry = (*Observed)(nil)
)
