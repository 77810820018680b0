package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"credex/internal/trust/metrics"
	"credex/internal/trust/models"
	"credex/internal/trust/store"
	dErrors "credex/pkg/domain-errors"
)

type LocalRegistrySuite struct {
	suite.Suite
	registry *LocalRegistry
}

func TestLocalRegistrySuite(t *testing.T) {
	suite.Run(t, new(LocalRegistrySuite))
}

func (s *LocalRegistrySuite) SetupTest() {
	s.registry = NewLocalRegistry(store.NewInMemory(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func (s *LocalRegistrySuite) TestAdd_NormalizesAndRejectsDuplicates() {
	ctx := context.Background()

	issuer, err := s.registry.Add(ctx, "did:sov:Issuer1", "  Faber  ", "admin")
	s.Require().NoError(err)
	s.Equal("Issuer1", issuer.DID)
	s.Equal("Faber", issuer.Name)

	_, err = s.registry.Add(ctx, "Issuer1", "Faber", "admin")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.registry.Add(ctx, "did:sov:", "", "admin")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LocalRegistrySuite) TestIsTrusted() {
	ctx := context.Background()
	_, err := s.registry.Add(ctx, "Issuer1", "", "")
	s.Require().NoError(err)

	for _, did := range []string{"Issuer1", "did:sov:Issuer1", " did:sov:Issuer1 "} {
		trusted, err := s.registry.IsTrusted(ctx, did)
		s.Require().NoError(err)
		s.True(trusted, did)
	}

	trusted, err := s.registry.IsTrusted(ctx, "did:sov:Other")
	s.Require().NoError(err)
	s.False(trusted)

	trusted, err = s.registry.IsTrusted(ctx, "")
	s.Require().NoError(err)
	s.False(trusted)
}

func (s *LocalRegistrySuite) TestRemove() {
	ctx := context.Background()
	_, err := s.registry.Add(ctx, "Issuer1", "", "")
	s.Require().NoError(err)

	s.Require().NoError(s.registry.Remove(ctx, "did:sov:Issuer1"))
	s.True(dErrors.HasCode(s.registry.Remove(ctx, "Issuer1"), dErrors.CodeNotFound))

	list, err := s.registry.List(ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *LocalRegistrySuite) TestSeed_SkipsExistingAndBlank() {
	ctx := context.Background()
	_, err := s.registry.Add(ctx, "Issuer1", "", "")
	s.Require().NoError(err)

	s.Require().NoError(Seed(ctx, s.registry, []string{"did:sov:Issuer1", "", "Issuer2"}, "seed"))

	list, err := s.registry.List(ctx)
	s.Require().NoError(err)
	s.Len(list, 2)
}

// brokenStore fails every call, standing in for a lost database connection.
type brokenStore struct{}

func (brokenStore) List(context.Context) ([]models.TrustedIssuer, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Get(context.Context, string) (*models.TrustedIssuer, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Insert(context.Context, models.TrustedIssuer) error {
	return errors.New("connection refused")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("connection refused") }

func TestLocalRegistry_StoreFailureIsUnavailable(t *testing.T) {
	reg := NewLocalRegistry(brokenStore{})

	trusted, err := reg.IsTrusted(context.Background(), "Issuer1")
	assert.False(t, trusted)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestObserved_RecordsLookups(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	local := NewLocalRegistry(store.NewInMemory())
	obs := NewObserved(local, m, nil)

	_, err := obs.Add(ctx, "Issuer1", "", "")
	require.NoError(t, err)
	_, _ = obs.IsTrusted(ctx, "Issuer1")
	_, _ = obs.IsTrusted(ctx, "Nope")
	_, _ = NewObserved(NewLocalRegistry(brokenStore{}), m, nil).IsTrusted(ctx, "x")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.ResultTrusted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.ResultUntrusted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AdminChangesTotal.WithLabelValues("add")))
}
