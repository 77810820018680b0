package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credex/internal/trust/metrics"
	"credex/internal/trust/models"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/circuit"
	"credex/pkg/platform/tracer"
)

const maxResponseBytes = 1 << 20

// HTTPRegistry talks to a remote trust registry exposing /trusted-dids.
// Consecutive transport failures open a circuit; while it is open calls fail
// fast with an unavailable error instead of waiting on the network.
type HTTPRegistry struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*HTTPRegistry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *HTTPRegistry) {
		r.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *HTTPRegistry) {
		r.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *HTTPRegistry) {
		r.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *HTTPRegistry) {
		r.tracer = t
	}
}

func NewHTTPRegistry(baseURL string, client *http.Client, opts ...Option) *HTTPRegistry {
	r := &HTTPRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("trust-registry")
	}
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

type remoteIssuer struct {
	DID     string `json:"did"`
	Name    string `json:"name"`
	AddedBy string `json:"addedBy"`
	AddedAt string `json:"addedAt"`
}

// IsTrusted fetches the remote list and compares DIDs with did:sov: stripped on both sides.
func (r *HTTPRegistry) IsTrusted(ctx context.Context, did string) (bool, error) {
	key := models.NormalizeDID(did)
	if key == "" {
		return false, nil
	}
	issuers, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	for _, iss := range issuers {
		if iss.DID == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *HTTPRegistry) List(ctx context.Context) ([]models.TrustedIssuer, error) {
	var remote []remoteIssuer
	if _, err := r.call(ctx, http.MethodGet, "/trusted-dids", nil, &remote); err != nil {
		return nil, err
	}
	out := make([]models.TrustedIssuer, 0, len(remote))
	for _, ri := range remote {
		out = append(out, toModel(ri))
	}
	return out, nil
}

func (r *HTTPRegistry) Add(ctx context.Context, did, name, addedBy string) (*models.TrustedIssuer, error) {
	key := models.NormalizeDID(did)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "did is required")
	}
	body := remoteIssuer{DID: key, Name: strings.TrimSpace(name), AddedBy: addedBy}
	var created remoteIssuer
	status, err := r.call(ctx, http.MethodPost, "/trusted-dids", body, &created)
	if err != nil {
		if status == http.StatusConflict {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("issuer already trusted: %s", key))
		}
		return nil, err
	}
	if created.DID == "" {
		created = body
	}
	issuer := toModel(created)
	return &issuer, nil
}

func (r *HTTPRegistry) Remove(ctx context.Context, did string) error {
	key := models.NormalizeDID(did)
	status, err := r.call(ctx, http.MethodDelete, "/trusted-dids/"+url.PathEscape(key), nil, nil)
	if err != nil && status == http.StatusNotFound {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("trusted issuer not found: %s", key))
	}
	return err
}

// call performs one request and decodes the envelope's data into out. It
// returns the HTTP status alongside any error so callers can map 404 and 409.
// Only transport failures and 5xx responses count against the circuit.
func (r *HTTPRegistry) call(ctx context.Context, method, path string, in, out any) (status int, err error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanTrustRemoteCall,
		tracer.String("http.method", method),
		tracer.String(tracer.AttrCircuitState, r.breaker.State().String()),
	)
	defer func() {
		span.SetAttributes(tracer.Int(tracer.AttrHTTPStatus, status))
		span.End(err)
	}()

	if !r.breaker.Allow() {
		return 0, dErrors.New(dErrors.CodeUnavailable, "trust registry unavailable: circuit open")
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "encode trust registry request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "build trust registry request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.recordFailure(ctx, err)
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unreachable: "+err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		r.recordFailure(ctx, err)
		return resp.StatusCode, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unreachable: "+err.Error())
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		err := fmt.Errorf("status %d", resp.StatusCode)
		r.recordFailure(ctx, err)
		return resp.StatusCode, dErrors.New(dErrors.CodeUnavailable, "trust registry unreachable: "+err.Error())
	}
	r.recordSuccess(ctx)

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("trust registry rejected request: status %d", resp.StatusCode))
	}
	if out == nil || len(raw) == 0 {
		return resp.StatusCode, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry returned malformed response")
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry returned malformed response")
	}
	return resp.StatusCode, nil
}

func (r *HTTPRegistry) recordFailure(ctx context.Context, err error) {
	change := r.breaker.RecordFailure()
	if change.Opened {
		r.logger.WarnContext(ctx, "trust registry circuit opened",
			"base_url", r.baseURL,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.SetCircuitOpen(true)
		}
	}
}

func (r *HTTPRegistry) recordSuccess(ctx context.Context) {
	change := r.breaker.RecordSuccess()
	if change.Closed {
		r.logger.InfoContext(ctx, "trust registry circuit closed", "base_url", r.baseURL)
		if r.metrics != nil {
			r.metrics.SetCircuitOpen(false)
		}
	}
}

func toModel(ri remoteIssuer) models.TrustedIssuer {
	iss := models.TrustedIssuer{
		DID:     models.NormalizeDID(ri.DID),
		Name:    ri.Name,
		AddedBy: ri.AddedBy,
	}
	if t, err := time.Parse(time.RFC3339Nano, ri.AddedAt); err == nil {
		iss.AddedAt = t
	}
	return iss
}
