package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"credex/internal/trust/models"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/sentinel"
)

// Registry answers whether an issuer DID is trusted and administers the list.
// Error Contract:
// - IsTrusted never guesses: an unreachable source is an unavailable error
// - Add of a present DID is a conflict error
// - Remove of an absent DID is a not_found error
type Registry interface {
	IsTrusted(ctx context.Context, did string) (bool, error)
	List(ctx context.Context) ([]models.TrustedIssuer, error)
	Add(ctx context.Context, did, name, addedBy string) (*models.TrustedIssuer, error)
	Remove(ctx context.Context, did string) error
}

// Store persists trusted issuers keyed by normalized DID.
type Store interface {
	List(ctx context.Context) ([]models.TrustedIssuer, error)
	Get(ctx context.Context, did string) (*models.TrustedIssuer, error)
	Insert(ctx context.Context, issuer models.TrustedIssuer) error
	Delete(ctx context.Context, did string) error
}

type Option func(*LocalRegistry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *LocalRegistry) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *LocalRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// LocalRegistry is a Registry owned by this instance.
type LocalRegistry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewLocalRegistry(store Store, opts ...Option) *LocalRegistry {
	r := &LocalRegistry{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsTrusted reports whether did, with any did:sov: prefix removed, is registered.
func (r *LocalRegistry) IsTrusted(ctx context.Context, did string) (bool, error) {
	key := models.NormalizeDID(did)
	if key == "" {
		return false, nil
	}
	_, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unavailable")
	}
}

func (r *LocalRegistry) List(ctx context.Context) ([]models.TrustedIssuer, error) {
	issuers, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unavailable")
	}
	return issuers, nil
}

func (r *LocalRegistry) Add(ctx context.Context, did, name, addedBy string) (*models.TrustedIssuer, error) {
	key := models.NormalizeDID(did)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "did is required")
	}
	issuer := models.TrustedIssuer{
		DID:     key,
		Name:    strings.TrimSpace(name),
		AddedBy: addedBy,
		AddedAt: r.now().UTC(),
	}
	if err := r.store.Insert(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("issuer already trusted: %s", key))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unavailable")
	}
	r.logger.InfoContext(ctx, "trusted issuer added",
		"did", key,
		"added_by", addedBy,
	)
	return &issuer, nil
}

func (r *LocalRegistry) Remove(ctx context.Context, did string) error {
	key := models.NormalizeDID(did)
	if err := r.store.Delete(ctx, key); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("trusted issuer not found: %s", key))
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "trust registry unavailable")
	}
	r.logger.InfoContext(ctx, "trusted issuer removed", "did", key)
	return nil
}

// Seed registers dids that are not yet present. It is used at startup for
// TRUST_REGISTRY_SEED_DIDS.
func Seed(ctx context.Context, reg Registry, dids []string, addedBy string) error {
	for _, did := range dids {
		if strings.TrimSpace(did) == "" {
			continue
		}
		if _, err := reg.Add(ctx, did, "", addedBy); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
	}
	return nil
}
