package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events in append order, indexed by subject.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	bySubject map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubject: make(map[string][]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.bySubject = make(map[string][]int)
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySubject[event.Subject] = append(s.bySubject[event.Subject], len(s.events))
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.bySubject[subject]
	out := make([]Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...), nil
}
