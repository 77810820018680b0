// Package tracer is a thin tracing port used by the trust registry and the
// verification path. Production wires OTelTracer; tests use NoopTracer.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks the span failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

const (
	SpanTrustIsTrusted   = "trust.is_trusted"
	SpanTrustRemoteCall  = "trust.remote.call"
	SpanVerify           = "verification.verify"
	SpanInboxDecide      = "inbox.decide"
	SpanCallbackDelivery = "inbox.callback"
)

const (
	AttrDID          = "issuer.did"
	AttrTrusted      = "trust.trusted"
	AttrCircuitState = "circuit.state"
	AttrSessionID    = "verification.session_id"
	AttrVerified     = "verification.verified"
	AttrAction       = "inbox.action"
	AttrHTTPStatus   = "http.status_code"
)
