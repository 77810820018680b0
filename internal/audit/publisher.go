package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   Store
	events  chan Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	async   bool
	now     func() time.Time
	metrics *Metrics
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithPublisherMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Go(p.processEvents)
	}
	return p
}

// processEvents persists events from the channel until Close.
func (p *Publisher) processEvents() {
	for event := range p.events {
		if p.metrics != nil {
			p.metrics.QueueDepth.Dec()
		}
		if err := p.persist(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	if p.metrics == nil {
		return err
	}
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PersistFailures.Inc()
		return err
	}
	p.metrics.EventsProcessed.Inc()
	return nil
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = p.now().UTC()
	}
	if p.async {
		// Drop rather than block the decision path when the buffer is full.
		select {
		case p.events <- base:
			if p.metrics != nil {
				p.metrics.EventsEnqueued.Inc()
				p.metrics.QueueDepth.Inc()
			}
			return nil
		default:
			if p.metrics != nil {
				p.metrics.EventsDropped.Inc()
			}
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit buffer full, event dropped",
					"action", base.Action,
					"subject", base.Subject,
				)
			}
			return nil
		}
	}
	return p.persist(ctx, base)
}
