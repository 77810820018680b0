package store

import (
	"context"
	"sync"

	"credex/internal/credential/models"
)

// InMemoryStore keeps the persisted collection in process memory.
// It satisfies the persistence contract for tests and ephemeral deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*models.Credential
	saves   int
}

// NewInMemory creates an empty in-memory persistence.
func NewInMemory(seed ...*models.Credential) *InMemoryStore {
	return &InMemoryStore{records: cloneAll(seed)}
}

func (s *InMemoryStore) LoadAll(_ context.Context) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.records), nil
}

func (s *InMemoryStore) SaveAll(_ context.Context, records []*models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneAll(records)
	s.saves++
	return nil
}

// Saves reports how many times SaveAll has been called.
func (s *InMemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneAll(records []*models.Credential) []*models.Credential {
	out := make([]*models.Credential, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r.Clone())
		}
	}
	return out
}
