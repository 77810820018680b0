package store

import (
	"context"
	"fmt"
	"sync"

	"credex/internal/verification/models"
	id "credex/pkg/domain"
	"credex/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process memory with a correlation index.
type InMemoryStore struct {
	mu            sync.RWMutex
	sessions      map[id.SessionID]*models.Session
	byCorrelation map[string]id.SessionID
	order         []id.SessionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions:      make(map[id.SessionID]*models.Session),
		byCorrelation: make(map[string]id.SessionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	if session.CorrelationID != "" {
		if _, ok := s.byCorrelation[session.CorrelationID]; ok {
			return fmt.Errorf("correlation %s: %w", session.CorrelationID, sentinel.ErrConflict)
		}
		s.byCorrelation[session.CorrelationID] = session.ID
	}
	s.sessions[session.ID] = session.Clone()
	s.order = append(s.order, session.ID)
	return nil
}

// Get resolves key as a session id first, then as a correlation id.
func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id.SessionID(key)]; ok {
		return session.Clone(), nil
	}
	if sid, ok := s.byCorrelation[key]; ok {
		if session, ok := s.sessions[sid]; ok {
			return session.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Save replaces the stored record in a single write.
func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// List returns sessions in creation order.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.order))
	for _, sid := range s.order {
		out = append(out, s.sessions[sid].Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.CorrelationID != "" {
		delete(s.byCorrelation, session.CorrelationID)
	}
	delete(s.sessions, sessionID)
	for i, sid := range s.order {
		if sid == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
