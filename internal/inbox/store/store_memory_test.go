package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credex/internal/inbox/models"
	id "credex/pkg/domain"
	"credex/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory(0)
	s.ctx = context.Background()
}

func notification(nid string, status models.Status) *models.Notification {
	return &models.Notification{ID: idOf(nid), Type: models.TypeCredentialOffer, Status: status}
}

func (s *InMemoryStoreSuite) TestCreateGetList() {
	s.Require().NoError(s.store.Create(s.ctx, notification("notification-1", models.StatusPending)))
	s.Require().NoError(s.store.Create(s.ctx, notification("notification-2", models.StatusAccepted)))
	s.Require().NoError(s.store.Create(s.ctx, notification("notification-3", models.StatusPending)))

	s.ErrorIs(s.store.Create(s.ctx, notification("notification-2", models.StatusPending)), sentinel.ErrConflict)

	got, err := s.store.Get(s.ctx, "notification-2")
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, got.Status)

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(idOf("notification-1"), all[0].ID)
	s.Equal(idOf("notification-3"), all[2].ID)

	pending, err := s.store.List(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Len(pending, 2)
}

func (s *InMemoryStoreSuite) TestSaveMovesToDecided() {
	n := notification("notification-1", models.StatusPending)
	s.Require().NoError(s.store.Create(s.ctx, n))

	n.Status = models.StatusDeclined
	s.Require().NoError(s.store.Save(s.ctx, n))

	got, err := s.store.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDeclined, got.Status)
	s.NotContains(s.store.pending, n.ID)

	s.ErrorIs(s.store.Save(s.ctx, notification("notification-x", models.StatusPending)), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestGetReturnsCopies() {
	n := notification("notification-1", models.StatusPending)
	n.ProofRequest = &models.ProofRequest{RequestedAttributes: []string{"name"}}
	s.Require().NoError(s.store.Create(s.ctx, n))

	got, err := s.store.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	got.ProofRequest.RequestedAttributes[0] = "email"

	again, err := s.store.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Equal("name", again.ProofRequest.RequestedAttributes[0])
}

func (s *InMemoryStoreSuite) TestFindByThread() {
	n := notification("notification-1", models.StatusPending)
	n.Type = models.TypeProofRequest
	n.ProofRequest = &models.ProofRequest{CorrelationID: "corr-1", SessionID: "verification-1"}
	s.Require().NoError(s.store.Create(s.ctx, n))

	got, err := s.store.FindByThread(s.ctx, "corr-1")
	s.Require().NoError(err)
	s.Equal(n.ID, got.ID)

	got, err = s.store.FindByThread(s.ctx, "verification-1")
	s.Require().NoError(err)
	s.Equal(n.ID, got.ID)

	_, err = s.store.FindByThread(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, notification("notification-1", models.StatusPending)))
	s.Require().NoError(s.store.Create(s.ctx, notification("notification-2", models.StatusDeclined)))

	s.Require().NoError(s.store.Delete(s.ctx, "notification-1"))
	s.Require().NoError(s.store.Delete(s.ctx, "notification-2"))
	s.ErrorIs(s.store.Delete(s.ctx, "notification-1"), sentinel.ErrNotFound)

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *InMemoryStoreSuite) TestPurgeInertAfterGrace() {
	store := NewInMemory(30 * time.Millisecond)
	s.Require().NoError(store.Create(s.ctx, notification("notification-1", models.StatusPending)))
	decided := notification("notification-2", models.StatusPending)
	s.Require().NoError(store.Create(s.ctx, decided))
	decided.Status = models.StatusAccepted
	s.Require().NoError(store.Save(s.ctx, decided))

	n, err := store.PurgeInert(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	time.Sleep(60 * time.Millisecond)
	n, err = store.PurgeInert(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = store.Get(s.ctx, decided.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = store.Get(s.ctx, "notification-1")
	s.NoError(err)
}

func idOf(s string) id.NotificationID { return id.NotificationID(s) }
