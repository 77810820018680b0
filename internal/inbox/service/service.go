// Package service routes inbound protocol messages into holder notifications
// and drives the decision sequence: match, verify, complete, call back.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"credex/internal/audit"
	credmodels "credex/internal/credential/models"
	"credex/internal/inbox/metrics"
	"credex/internal/inbox/models"
	"credex/internal/matcher"
	vmodels "credex/internal/verification/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/sentinel"
	pkgsync "credex/pkg/platform/sync"
	"credex/pkg/platform/tracer"
)

// Store persists notifications.
// Error Contract:
// - Create returns sentinel.ErrConflict for a duplicate id
// - Get, Save, FindByThread and Delete return sentinel.ErrNotFound
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)
	Save(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, status models.Status) ([]*models.Notification, error)
	FindByThread(ctx context.Context, thread string) (*models.Notification, error)
	Delete(ctx context.Context, notificationID id.NotificationID) error
	PurgeInert(ctx context.Context) (int, error)
}

// CredentialStore is the write side of the credential store.
type CredentialStore interface {
	Add(ctx context.Context, cred *credmodels.Credential) (*credmodels.Credential, error)
}

type Matcher interface {
	CheckAvailability(ctx context.Context, requested []string) (*matcher.Availability, error)
	Select(ctx context.Context, requested []string, credentialID id.CredentialID) (*credmodels.Credential, *matcher.Availability, error)
}

// Sessions is the verification session manager.
type Sessions interface {
	Create(ctx context.Context, requester vmodels.Requester, requested []string, correlationID string) (*vmodels.Session, error)
	Get(ctx context.Context, key string) (*vmodels.Session, error)
	Complete(ctx context.Context, key string, outcome vmodels.Outcome) (*vmodels.Session, error)
	Verify(ctx context.Context, requested []string, cred *credmodels.Credential) vmodels.Outcome
}

// CallbackNotifier delivers a decided proof request to the requester. It
// returns the requester's echo when one was sent back.
type CallbackNotifier interface {
	Notify(ctx context.Context, url string, payload models.CallbackPayload) (*models.RequesterAck, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func WithCallbackNotifier(n CallbackNotifier) Option {
	return func(r *Router) {
		r.callbacks = n
	}
}

func WithAuditor(a AuditPublisher) Option {
	return func(r *Router) {
		r.auditor = a
	}
}

// WithWalletIdentity sets the DID and endpoint announced in connection responses.
func WithWalletIdentity(did, endpoint string) Option {
	return func(r *Router) {
		r.walletDID = did
		r.walletEndpoint = endpoint
	}
}

// Router owns the holder inbox.
type Router struct {
	store       Store
	credentials CredentialStore
	matcher     Matcher
	sessions    Sessions
	callbacks   CallbackNotifier
	auditor     AuditPublisher
	locks       *pkgsync.ShardedMutex
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	now         func() time.Time

	walletDID      string
	walletEndpoint string
}

func NewRouter(store Store, credentials CredentialStore, m Matcher, sessions Sessions, opts ...Option) *Router {
	r := &Router{
		store:       store,
		credentials: credentials,
		matcher:     m,
		sessions:    sessions,
		locks:       pkgsync.NewShardedMutex(),
		logger:      slog.Default(),
		tracer:      tracer.NewNoop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequestVerification opens a session and the matching proof-request
// notification for an external requester. Without attributes the default
// set is requested.
func (r *Router) RequestVerification(ctx context.Context, req models.VerificationRequest) (*models.Notification, error) {
	if strings.TrimSpace(req.Requester.ExternalID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requester id is required")
	}
	requested := req.RequestedAttributes
	if len(requested) == 0 {
		requested = models.DefaultRequestedAttributes
	}
	return r.openProofRequest(ctx, req.Requester, requested, req.CorrelationID, nil)
}

func (r *Router) openProofRequest(ctx context.Context, requester vmodels.Requester, requested []string, correlationID string, raw map[string]any) (*models.Notification, error) {
	session, err := r.sessions.Create(ctx, requester, requested, correlationID)
	if err != nil {
		return nil, err
	}
	n := &models.Notification{
		ID:      id.NewNotificationID(),
		Type:    models.TypeProofRequest,
		Title:   "Proof Request",
		Message: fmt.Sprintf("%s requests: %s", requester.Label(), strings.Join(session.RequestedAttributes, ", ")),
		Status:  models.StatusPending,
		ProofRequest: &models.ProofRequest{
			RequestedAttributes: session.RequestedAttributes,
			Requester:           requester,
			CorrelationID:       session.CorrelationID,
			SessionID:           session.ID,
		},
		Raw:       raw,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Create(ctx, n); err != nil {
		if _, cerr := r.sessions.Complete(ctx, string(session.ID), vmodels.FailedWith("proof request could not be delivered")); cerr != nil {
			r.logger.ErrorContext(ctx, "failed to close orphaned verification session", "session_id", session.ID, "error", cerr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	r.logger.InfoContext(ctx, "proof request received",
		"notification_id", n.ID,
		"session_id", session.ID,
		"requester", requester.ExternalID,
		"requested", session.RequestedAttributes,
	)
	return n.Clone(), nil
}

// CheckAvailability matches a proof-request notification against the store.
func (r *Router) CheckAvailability(ctx context.Context, notificationID id.NotificationID) (*matcher.Availability, error) {
	n, err := r.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Type != models.TypeProofRequest || n.ProofRequest == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("notification %s is not a proof request", n.ID))
	}
	return r.matcher.CheckAvailability(ctx, n.ProofRequest.RequestedAttributes)
}

// List returns notifications in arrival order. An empty status returns all.
func (r *Router) List(ctx context.Context, status models.Status) ([]*models.Notification, error) {
	list, err := r.store.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return list, nil
}

func (r *Router) Get(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	n, err := r.store.Get(ctx, notificationID)
	if err != nil {
		return nil, r.notFoundOr(err, notificationID)
	}
	return n, nil
}

// Delete removes a notification. A linked verification session is left as is.
func (r *Router) Delete(ctx context.Context, notificationID id.NotificationID) error {
	return r.locks.WithLock(string(notificationID), func() error {
		if err := r.store.Delete(ctx, notificationID); err != nil {
			return r.notFoundOr(err, notificationID)
		}
		r.logger.InfoContext(ctx, "notification deleted", "notification_id", notificationID)
		return nil
	})
}

// PurgeInert removes decided notifications whose grace period ended.
func (r *Router) PurgeInert(ctx context.Context) (int, error) {
	return r.store.PurgeInert(ctx)
}

func (r *Router) notFoundOr(err error, notificationID id.NotificationID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("notification not found: %s", notificationID))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notification")
}

func (r *Router) emit(ctx context.Context, event audit.Event) {
	if r.auditor == nil {
		return
	}
	if err := r.auditor.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
