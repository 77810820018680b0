package store

import (
	"context"
	"sort"
	"sync"

	"credex/internal/trust/models"
	"credex/pkg/platform/sentinel"
)

// InMemoryStore keeps trusted issuers in a map keyed by normalized DID.
type InMemoryStore struct {
	mu      sync.RWMutex
	issuers map[string]models.TrustedIssuer
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{issuers: make(map[string]models.TrustedIssuer)}
}

// List returns issuers ordered by AddedAt, then DID.
func (s *InMemoryStore) List(_ context.Context) ([]models.TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrustedIssuer, 0, len(s.issuers))
	for _, iss := range s.issuers {
		out = append(out, iss)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].DID < out[j].DID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, did string) (*models.TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iss, ok := s.issuers[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &iss, nil
}

func (s *InMemoryStore) Insert(_ context.Context, issuer models.TrustedIssuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[issuer.DID]; ok {
		return sentinel.ErrConflict
	}
	s.issuers[issuer.DID] = issuer
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[did]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.issuers, did)
	return nil
}
