package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"credex/internal/verification/metrics"
	"credex/internal/verification/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/sentinel"
	pkgstrings "credex/pkg/platform/strings"
	pkgsync "credex/pkg/platform/sync"
	"credex/pkg/platform/tracer"
)

// IssuerDIDAttribute names the disclosed attribute checked against the trust registry.
const IssuerDIDAttribute = "issuer_did"

// ExpiredMessage is the failure message of sessions failed by ExpirePending.
const ExpiredMessage = "verification session expired"

// Store persists sessions. Get resolves a session id or a correlation id.
// Error Contract:
// - Create returns sentinel.ErrConflict when the id or correlation id is taken
// - Get, Save and Delete return sentinel.ErrNotFound for unknown sessions
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// TrustChecker is the trust registry lookup used during verification.
type TrustChecker interface {
	IsTrusted(ctx context.Context, did string) (bool, error)
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the verification session state machine.
type Manager struct {
	store   Store
	trust   TrustChecker
	locks   *pkgsync.ShardedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

func NewManager(store Store, trust TrustChecker, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		trust:  trust,
		locks:  pkgsync.NewShardedMutex(),
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a pending session. correlationID may be empty.
func (m *Manager) Create(ctx context.Context, requester models.Requester, requested []string, correlationID string) (*models.Session, error) {
	names := pkgstrings.DedupeFold(requested)
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one requested attribute is required")
	}
	session := &models.Session{
		ID:                  id.NewSessionID(),
		CorrelationID:       strings.TrimSpace(correlationID),
		Requester:           requester,
		RequestedAttributes: names,
		Status:              models.StatusPending,
		CreatedAt:           m.now().UTC(),
	}
	if err := m.store.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("verification session already exists for correlation id: %s", session.CorrelationID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification session")
	}
	if m.metrics != nil {
		m.metrics.RecordCreated()
	}
	m.logger.InfoContext(ctx, "verification session created",
		"session_id", session.ID,
		"correlation_id", session.CorrelationID,
		"requester", requester.ExternalID,
		"requested", len(names),
	)
	return session.Clone(), nil
}

// Get returns the session with id or correlation id key. It never waits on
// an in-flight Complete.
func (m *Manager) Get(ctx context.Context, key string) (*models.Session, error) {
	session, err := m.store.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("verification session not found: %s", key))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}
	return session, nil
}

func (m *Manager) List(ctx context.Context) ([]*models.Session, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification sessions")
	}
	return sessions, nil
}

// Complete applies a terminal outcome exactly once. Calls on a terminal
// session fail with session_terminal and change nothing.
func (m *Manager) Complete(ctx context.Context, key string, outcome models.Outcome) (*models.Session, error) {
	if !outcome.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("outcome status must be terminal, got %q", outcome.Status))
	}
	resolved, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var completed *models.Session
	err = m.locks.WithLock(string(resolved.ID), func() error {
		current, err := m.Get(ctx, string(resolved.ID))
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return dErrors.New(dErrors.CodeSessionTerminal,
				fmt.Sprintf("verification session %s is already %s", current.ID, current.Status))
		}
		now := m.now().UTC()
		current.Status = outcome.Status
		current.CompletedAt = &now
		current.VerificationResult = outcome.Result
		current.ProofReceived = outcome.Proof
		if err := m.store.Save(ctx, current); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification session")
		}
		completed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.RecordCompleted(string(completed.Status), completed.CreatedAt, *completed.CompletedAt)
	}
	message := ""
	if completed.VerificationResult != nil {
		message = completed.VerificationResult.Message
	}
	m.logger.InfoContext(ctx, "verification session completed",
		"session_id", completed.ID,
		"status", completed.Status,
		"message", message,
	)
	return completed.Clone(), nil
}

// ExpirePending fails pending sessions older than timeout. A zero timeout
// disables expiry.
func (m *Manager) ExpirePending(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, nil
	}
	sessions, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, s := range sessions {
		if !s.IsExpired(now, timeout) {
			continue
		}
		_, err := m.Complete(ctx, string(s.ID), models.FailedWith(ExpiredMessage))
		switch {
		case err == nil:
			expired++
		case dErrors.HasCode(err, dErrors.CodeSessionTerminal), dErrors.HasCode(err, dErrors.CodeNotFound):
			// Completed or removed concurrently.
		default:
			return expired, err
		}
	}
	if expired > 0 && m.metrics != nil {
		m.metrics.SessionsExpiredTotal.Add(float64(expired))
	}
	return expired, nil
}

// PurgeCompleted deletes terminal sessions completed before cutoff.
func (m *Manager) PurgeCompleted(ctx context.Context, cutoff time.Time) (int, error) {
	sessions, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, s := range sessions {
		if !s.Status.IsTerminal() || s.CompletedAt == nil || !s.CompletedAt.Before(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, s.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return purged, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge verification session")
		}
		purged++
	}
	if purged > 0 && m.metrics != nil {
		m.metrics.SessionsPurgedTotal.Add(float64(purged))
	}
	return purged, nil
}
