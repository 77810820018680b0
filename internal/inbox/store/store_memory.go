package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"credex/internal/inbox/models"
	id "credex/pkg/domain"
	"credex/pkg/platform/sentinel"
)

// InMemoryStore keeps pending notifications until decided. Decided ones move
// into a cache and expire after the grace period, so replays within that
// window still see the stored result.
type InMemoryStore struct {
	mu      sync.RWMutex
	pending map[id.NotificationID]*models.Notification
	decided *cache.Cache
	order   []id.NotificationID
}

// NewInMemory creates a store. A grace period of zero keeps decided
// notifications until they are deleted.
func NewInMemory(grace time.Duration) *InMemoryStore {
	ttl := grace
	cleanup := grace
	if grace <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &InMemoryStore{
		pending: make(map[id.NotificationID]*models.Notification),
		decided: cache.New(ttl, cleanup),
	}
}

func (s *InMemoryStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookupLocked(n.ID); ok {
		return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
	}
	s.putLocked(n)
	s.order = append(s.order, n.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookupLocked(notificationID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return n.Clone(), nil
}

// Save replaces a stored notification. A terminal status starts its grace period.
func (s *InMemoryStore) Save(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookupLocked(n.ID); !ok {
		return sentinel.ErrNotFound
	}
	s.putLocked(n)
	return nil
}

// List returns notifications in arrival order. An empty status returns all.
func (s *InMemoryStore) List(_ context.Context, status models.Status) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Notification, 0, len(s.order))
	for _, nid := range s.order {
		n, ok := s.lookupLocked(nid)
		if !ok {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		out = append(out, n.Clone())
	}
	return out, nil
}

// FindByThread returns the proof-request notification whose correlation id
// or session id equals thread.
func (s *InMemoryStore) FindByThread(_ context.Context, thread string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, nid := range s.order {
		n, ok := s.lookupLocked(nid)
		if !ok || n.ProofRequest == nil {
			continue
		}
		if n.ProofRequest.CorrelationID == thread || string(n.ProofRequest.SessionID) == thread {
			return n.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Delete(_ context.Context, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookupLocked(notificationID); !ok {
		return sentinel.ErrNotFound
	}
	delete(s.pending, notificationID)
	s.decided.Delete(string(notificationID))
	s.order = slices.DeleteFunc(s.order, func(nid id.NotificationID) bool { return nid == notificationID })
	return nil
}

// PurgeInert drops decided notifications whose grace period ended and
// returns how many were removed.
func (s *InMemoryStore) PurgeInert(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decided.DeleteExpired()
	before := len(s.order)
	s.order = slices.DeleteFunc(s.order, func(nid id.NotificationID) bool {
		_, ok := s.lookupLocked(nid)
		return !ok
	})
	return before - len(s.order), nil
}

func (s *InMemoryStore) lookupLocked(notificationID id.NotificationID) (*models.Notification, bool) {
	if n, ok := s.pending[notificationID]; ok {
		return n, true
	}
	if v, ok := s.decided.Get(string(notificationID)); ok {
		return v.(*models.Notification), true
	}
	return nil, false
}

func (s *InMemoryStore) putLocked(n *models.Notification) {
	stored := n.Clone()
	if stored.Status.IsTerminal() {
		delete(s.pending, stored.ID)
		// Keep the original expiry on repeated saves of a decided notification.
		if _, exp, ok := s.decided.GetWithExpiration(string(stored.ID)); ok {
			ttl := cache.NoExpiration
			if !exp.IsZero() {
				ttl = time.Until(exp)
			}
			s.decided.Set(string(stored.ID), stored, ttl)
			return
		}
		s.decided.SetDefault(string(stored.ID), stored)
		return
	}
	s.decided.Delete(string(stored.ID))
	s.pending[stored.ID] = stored
}
