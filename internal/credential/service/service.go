package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"credex/internal/credential/metrics"
	"credex/internal/credential/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
)

// Persistence is the whole-collection storage contract.
// Error Contract:
// - LoadAll returns an empty slice, not an error, when nothing has been saved yet
// - SaveAll returns only after the collection is durable; on error nothing is assumed written
type Persistence interface {
	LoadAll(ctx context.Context) ([]*models.Credential, error)
	SaveAll(ctx context.Context, records []*models.Credential) error
}

type Option func(*Service)

// Service owns the canonical credential records. The in-process slice is the
// read path; every mutation is persisted before it becomes visible, so a
// failed save leaves both memory and storage on the previous collection.
type Service struct {
	mu          sync.RWMutex
	records     []*models.Credential
	persistence Persistence
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService loads the persisted collection and returns a ready store.
func NewService(ctx context.Context, persistence Persistence, opts ...Option) (*Service, error) {
	svc := &Service{
		persistence: persistence,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	records, err := persistence.LoadAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credentials")
	}
	seen := make(map[id.CredentialID]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup || r.ID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("persisted collection has invalid or duplicate id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
		r.SetAttributes(r.Attributes)
	}
	svc.records = records
	if svc.metrics != nil {
		svc.metrics.StoredCredentials.Set(float64(len(records)))
	}
	svc.logger.InfoContext(ctx, "credential store loaded", "count", len(records))
	return svc, nil
}

// Add stores a credential. An empty id is generated; an id already present
// fails with a conflict error.
func (s *Service) Add(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	if cred.Status != "" && !cred.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid credential status: %s", cred.Status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := cred.Clone()
	if record.ID.IsNil() {
		record.ID = s.freshIDLocked()
	} else if s.indexLocked(record.ID) >= 0 {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("credential id already exists: %s", record.ID))
	}
	if record.Status == "" {
		record.Status = models.StatusStored
	}
	if record.OriginalFormat == "" {
		record.OriginalFormat = models.FormatUnknown
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.SetAttributes(record.Attributes)

	next := make([]*models.Credential, 0, len(s.records)+1)
	next = append(next, s.records...)
	next = append(next, record)
	if err := s.commitLocked(ctx, "add", next); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "credential stored",
		"credential_id", record.ID,
		"format", record.OriginalFormat,
		"attributes", len(record.Attributes),
	)
	return record.Clone(), nil
}

// List returns copies of the credentials matching filter, in insertion order.
func (s *Service) List(_ context.Context, filter models.Filter) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Credential, 0, len(s.records))
	for _, r := range s.records {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// FindByID returns a copy of the credential or a not_found error.
func (s *Service) FindByID(_ context.Context, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(credID); i >= 0 {
		return s.records[i].Clone(), nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("credential not found: %s", credID))
}

// Remove deletes a credential. It reports false, without error, when the id is already gone.
func (s *Service) Remove(ctx context.Context, credID id.CredentialID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(credID)
	if i < 0 {
		return false, nil
	}
	next := make([]*models.Credential, 0, len(s.records)-1)
	next = append(next, s.records[:i]...)
	next = append(next, s.records[i+1:]...)
	if err := s.commitLocked(ctx, "remove", next); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "credential removed", "credential_id", credID)
	return true, nil
}

// UpdateStatus sets the lifecycle status of a stored credential.
func (s *Service) UpdateStatus(ctx context.Context, credID id.CredentialID, status models.Status) (*models.Credential, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid credential status: %s", status))
	}
	return s.mutate(ctx, "update_status", credID, func(c *models.Credential) {
		c.Status = status
	})
}

// MarkRevoked flags a credential as revoked. Revoked credentials stay listed
// but are never offered as proof candidates.
func (s *Service) MarkRevoked(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	return s.mutate(ctx, "revoke", credID, func(c *models.Credential) {
		c.IsRevoked = true
	})
}

func (s *Service) mutate(ctx context.Context, op string, credID id.CredentialID, apply func(*models.Credential)) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(credID)
	if i < 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("credential not found: %s", credID))
	}
	updated := s.records[i].Clone()
	apply(updated)
	updated.UpdatedAt = s.now()

	next := make([]*models.Credential, len(s.records))
	copy(next, s.records)
	next[i] = updated
	if err := s.commitLocked(ctx, op, next); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// commitLocked persists next and, only on success, makes it the live collection.
func (s *Service) commitLocked(ctx context.Context, op string, next []*models.Credential) error {
	start := time.Now()
	err := s.persistence.SaveAll(ctx, next)
	if s.metrics != nil {
		s.metrics.ObservePersist(start, err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist credentials",
			"operation", op,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist credentials")
	}
	s.records = next
	if s.metrics != nil {
		s.metrics.RecordMutation(op, len(next))
	}
	return nil
}

func (s *Service) indexLocked(credID id.CredentialID) int {
	for i, r := range s.records {
		if r.ID == credID {
			return i
		}
	}
	return -1
}

func (s *Service) freshIDLocked() id.CredentialID {
	for {
		candidate := id.NewCredentialID()
		if s.indexLocked(candidate) < 0 {
			return candidate
		}
	}
}
