package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"credex/internal/verification/models"
	id "credex/pkg/domain"
	"credex/pkg/platform/sentinel"
	"credex/pkg/testutil"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// StoreContractSuite runs the same behavioral checks against every backend.
type StoreContractSuite struct {
	suite.Suite
	newStore func(t *testing.T) sessionStore
	store    sessionStore
	ctx      context.Context
	base     time.Time
}

func TestInMemoryStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func(*testing.T) sessionStore { return NewInMemory() }})
}

func TestRedisStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func(t *testing.T) sessionStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client)
	}})
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
	s.base = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreContractSuite) session(n int, correlation string) *models.Session {
	return &models.Session{
		ID:                  id.SessionID(fmt.Sprintf("verification-%02d", n)),
		CorrelationID:       correlation,
		Requester:           models.Requester{ExternalID: "acme"},
		RequestedAttributes: []string{"name"},
		Status:              models.StatusPending,
		CreatedAt:           s.base.Add(time.Duration(n) * time.Second),
	}
}

func (s *StoreContractSuite) TestCreateAndResolveByEitherKey() {
	s.Require().NoError(s.store.Create(s.ctx, s.session(1, "thread-abc")))

	byID, err := s.store.Get(s.ctx, "verification-01")
	s.Require().NoError(err)
	byCorrelation, err := s.store.Get(s.ctx, "thread-abc")
	s.Require().NoError(err)

	s.Equal(byID.ID, byCorrelation.ID)
	s.Equal("acme", byCorrelation.Requester.ExternalID)

	_, err = s.store.Get(s.ctx, "unknown")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestCreateRejectsDuplicates() {
	s.Require().NoError(s.store.Create(s.ctx, s.session(1, "thread-abc")))

	s.ErrorIs(s.store.Create(s.ctx, s.session(1, "")), sentinel.ErrConflict)
	s.ErrorIs(s.store.Create(s.ctx, s.session(2, "thread-abc")), sentinel.ErrConflict)

	_, err := s.store.Get(s.ctx, "verification-02")
	s.ErrorIs(err, sentinel.ErrNotFound, "rejected create must leave nothing behind")
}

func (s *StoreContractSuite) TestSaveReplacesWholeRecord() {
	sess := s.session(1, "")
	s.Require().NoError(s.store.Create(s.ctx, sess))

	done := s.base.Add(time.Minute)
	sess.Status = models.StatusVerified
	sess.CompletedAt = &done
	sess.VerificationResult = &models.Result{Verified: true, Message: "Verified by trusted issuer: X"}
	s.Require().NoError(s.store.Save(s.ctx, sess))

	got, err := s.store.Get(s.ctx, string(sess.ID))
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
	s.True(got.CompletedAt.Equal(done))
	s.True(got.VerificationResult.Verified)

	s.ErrorIs(s.store.Save(s.ctx, s.session(9, "")), sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestListInCreationOrderAndDelete() {
	for _, n := range []int{3, 1, 2} {
		s.Require().NoError(s.store.Create(s.ctx, s.session(n, fmt.Sprintf("c-%d", n))))
	}
	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal(id.SessionID("verification-01"), list[0].ID)

	s.Require().NoError(s.store.Delete(s.ctx, "verification-01"))
	s.ErrorIs(s.store.Delete(s.ctx, "verification-01"), sentinel.ErrNotFound)
	_, err = s.store.Get(s.ctx, "c-1")
	s.ErrorIs(err, sentinel.ErrNotFound, "correlation index is removed with the session")

	list, err = s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *StoreContractSuite) TestReturnedRecordsAreCopies() {
	s.Require().NoError(s.store.Create(s.ctx, s.session(1, "")))
	got, err := s.store.Get(s.ctx, "verification-01")
	s.Require().NoError(err)
	got.RequestedAttributes[0] = "mutated"

	again, err := s.store.Get(s.ctx, "verification-01")
	s.Require().NoError(err)
	s.Equal("name", again.RequestedAttributes[0])
}

func TestRedisStore_ConcurrentCreateSameCorrelation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	st := NewRedis(client)

	result := testutil.RunConcurrent(10, func(n int) error {
		return st.Create(context.Background(), &models.Session{
			ID:            id.SessionID(fmt.Sprintf("verification-%d", n)),
			CorrelationID: "shared",
			Status:        models.StatusPending,
			CreatedAt:     time.Now(),
		})
	})

	require.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(9), result.Conflicts)
	assert.Zero(t, result.Errors)
}

// failingPipeline lets single commands through and fails every pipeline.
type failingPipeline struct{ err error }

func (h failingPipeline) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failingPipeline) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h failingPipeline) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(h.err)
		}
		return h.err
	}
}

func TestRedisStore_ListSurfacesTransportErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	st := NewRedis(client)
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, &models.Session{
		ID:        "verification-1",
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}))

	t.Run("missing record is skipped", func(t *testing.T) {
		require.NoError(t, client.ZAdd(ctx, sessionIndexKey, redis.Z{Score: 0, Member: "verification-ghost"}).Err())
		got, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, id.SessionID("verification-1"), got[0].ID)
	})

	t.Run("connection failure is returned", func(t *testing.T) {
		connErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
		client.AddHook(failingPipeline{err: connErr})

		got, err := st.List(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, connErr)
		assert.Nil(t, got)
	})
}
