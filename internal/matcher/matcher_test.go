package matcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"credex/internal/credential/models"
	"credex/internal/credential/service"
	"credex/internal/credential/store"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
)

type MatcherSuite struct {
	suite.Suite
	ctx     context.Context
	creds   *service.Service
	matcher *Matcher
	base    time.Time
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.base = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc, err := service.NewService(s.ctx, store.NewInMemory(),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.creds = svc
	s.matcher = New(svc, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *MatcherSuite) add(credID string, status models.Status, minutes int, names ...string) {
	c := &models.Credential{ID: id.CredentialID(credID), Status: status, CreatedAt: s.base.Add(time.Duration(minutes) * time.Minute)}
	attrs := make([]models.Attribute, 0, len(names))
	for _, n := range names {
		attrs = append(attrs, models.Attribute{Name: n, Value: "v"})
	}
	c.SetAttributes(attrs)
	_, err := s.creds.Add(s.ctx, c)
	s.Require().NoError(err)
}

func ids(creds []*models.Credential) []id.CredentialID {
	out := make([]id.CredentialID, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.ID)
	}
	return out
}

// =============================================================================
// CheckAvailability
// =============================================================================

func (s *MatcherSuite) TestCheckAvailability_SingleCredentialMatch() {
	s.add("cred_1", models.StatusStored, 0, "name", "email", "issuer_did")

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"name", "email"})
	s.Require().NoError(err)

	s.True(got.HasMatch)
	s.Empty(got.MissingAttributes)
	s.NotNil(got.MissingAttributes)
	s.Equal([]string{"email", "issuer_did", "name"}, got.AvailableAttributes)
	s.Equal([]id.CredentialID{"cred_1"}, ids(got.MatchingCredentials))
}

func (s *MatcherSuite) TestCheckAvailability_CaseInsensitive() {
	s.add("cred_1", models.StatusStored, 0, "NAME")

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"name", " Name "})
	s.Require().NoError(err)
	s.True(got.HasMatch)
}

func (s *MatcherSuite) TestCheckAvailability_MissingInRequestOrder() {
	s.add("cred_1", models.StatusStored, 0, "name")

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"Phone", "name", "Address"})
	s.Require().NoError(err)

	s.False(got.HasMatch)
	s.Equal([]string{"phone", "address"}, got.MissingAttributes)
	s.Empty(got.MatchingCredentials)
}

// No partial composition: the union covers the request but no single credential does.
func (s *MatcherSuite) TestCheckAvailability_NoComposition() {
	s.add("cred_1", models.StatusStored, 0, "name")
	s.add("cred_2", models.StatusStored, 1, "email")

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"name", "email"})
	s.Require().NoError(err)

	s.False(got.HasMatch)
	s.Empty(got.MissingAttributes)
	s.Empty(got.MatchingCredentials)
}

func (s *MatcherSuite) TestCheckAvailability_IgnoresDeclinedAndRevoked() {
	s.add("cred_declined", models.StatusDeclined, 0, "name", "phone")
	s.add("cred_revoked", models.StatusStored, 1, "name", "ssn")
	_, err := s.creds.MarkRevoked(s.ctx, "cred_revoked")
	s.Require().NoError(err)
	s.add("cred_ok", models.StatusStored, 2, "name")

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"name", "phone"})
	s.Require().NoError(err)
	s.Equal([]string{"phone"}, got.MissingAttributes)
	s.Equal([]string{"name"}, got.AvailableAttributes)

	got, err = s.matcher.CheckAvailability(s.ctx, []string{"name"})
	s.Require().NoError(err)
	s.Equal([]id.CredentialID{"cred_ok"}, ids(got.MatchingCredentials))
}

func (s *MatcherSuite) TestCheckAvailability_DoesNotMutateStore() {
	s.add("cred_1", models.StatusStored, 0, "name")
	before, err := s.creds.List(s.ctx, models.Filter{})
	s.Require().NoError(err)

	got, err := s.matcher.CheckAvailability(s.ctx, []string{"name"})
	s.Require().NoError(err)
	got.MatchingCredentials[0].Attributes[0].Value = "mutated"

	after, err := s.creds.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Equal(before, after)
}

// =============================================================================
// Select
// =============================================================================

func (s *MatcherSuite) TestSelect_FirstMatchByDefault() {
	s.add("cred_old", models.StatusStored, 0, "name")
	s.add("cred_new", models.StatusStored, 10, "name")

	chosen, avail, err := s.matcher.Select(s.ctx, []string{"name"}, "")
	s.Require().NoError(err)
	s.Equal(id.CredentialID("cred_old"), chosen.ID)
	s.Len(avail.MatchingCredentials, 2)
}

func (s *MatcherSuite) TestSelect_MostRecentStrategy() {
	s.add("cred_old", models.StatusStored, 0, "name")
	s.add("cred_new", models.StatusStored, 10, "name")
	m := New(s.creds, WithStrategy(MostRecent{}))

	chosen, _, err := m.Select(s.ctx, []string{"name"}, "")
	s.Require().NoError(err)
	s.Equal(id.CredentialID("cred_new"), chosen.ID)
}

// An explicit id is used verbatim even when it does not satisfy the request.
func (s *MatcherSuite) TestSelect_ExplicitIDVerbatim() {
	s.add("cred_partial", models.StatusStored, 0, "name")
	s.add("cred_full", models.StatusStored, 1, "name", "email")

	chosen, _, err := s.matcher.Select(s.ctx, []string{"name", "email"}, "cred_partial")
	s.Require().NoError(err)
	s.Equal(id.CredentialID("cred_partial"), chosen.ID)

	_, _, err = s.matcher.Select(s.ctx, []string{"name"}, "cred_unknown")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *MatcherSuite) TestSelect_NoCandidate() {
	chosen, avail, err := s.matcher.Select(s.ctx, []string{"name"}, "")
	s.Require().NoError(err)
	s.Nil(chosen)
	s.False(avail.HasMatch)
}

func TestStrategyByName(t *testing.T) {
	for name, want := range map[string]string{"": "first", "first": "first", "most_recent": "most_recent"} {
		got, err := StrategyByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got.Name())
	}
	_, err := StrategyByName("random")
	assert.Error(t, err)
}

func TestMostRecent_TiesKeepStoreOrder(t *testing.T) {
	now := time.Now()
	a := &models.Credential{ID: "a", CreatedAt: now}
	b := &models.Credential{ID: "b", CreatedAt: now}
	assert.Equal(t, id.CredentialID("a"), MostRecent{}.Pick([]*models.Credential{a, b}).ID)
	assert.Nil(t, MostRecent{}.Pick(nil))
	assert.Nil(t, FirstMatch{}.Pick(nil))
}
