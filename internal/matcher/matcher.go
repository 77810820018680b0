// Package matcher decides whether the holder can satisfy a proof request and
// which stored credential to disclose. It only reads the credential store.
package matcher

import (
	"context"
	"log/slog"
	"sort"

	"credex/internal/credential/models"
	id "credex/pkg/domain"
	pkgstrings "credex/pkg/platform/strings"
)

// CredentialReader is the read side of the credential store.
type CredentialReader interface {
	List(ctx context.Context, filter models.Filter) ([]*models.Credential, error)
	FindByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
}

// Availability is the outcome of matching a request against the store.
type Availability struct {
	HasMatch            bool                 `json:"hasMatch"`
	MissingAttributes   []string             `json:"missingAttributes"`
	AvailableAttributes []string             `json:"availableAttributes"`
	MatchingCredentials []*models.Credential `json:"matchingCredentials"`
}

type Option func(*Matcher)

func WithStrategy(s SelectionStrategy) Option {
	return func(m *Matcher) {
		if s != nil {
			m.strategy = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

type Matcher struct {
	store    CredentialReader
	strategy SelectionStrategy
	logger   *slog.Logger
}

func New(store CredentialReader, opts ...Option) *Matcher {
	m := &Matcher{
		store:    store,
		strategy: FirstMatch{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// eligible excludes credentials that can never be disclosed.
var eligible = models.Filter{ExcludeDeclined: true, ExcludeRevoked: true}

// CheckAvailability reports which requested names the holder lacks and which
// stored credentials alone carry every requested name. Names compare
// case-insensitively; missing names are reported lower-cased in request order.
func (m *Matcher) CheckAvailability(ctx context.Context, requested []string) (*Availability, error) {
	creds, err := m.store.List(ctx, eligible)
	if err != nil {
		return nil, err
	}
	wanted := pkgstrings.DedupeAndTrimLower(requested)

	union := make(map[string]struct{})
	for _, c := range creds {
		for name := range c.NameSet() {
			union[name] = struct{}{}
		}
	}
	available := make([]string, 0, len(union))
	for name := range union {
		available = append(available, name)
	}
	sort.Strings(available)

	missing := make([]string, 0)
	for _, name := range wanted {
		if _, ok := union[name]; !ok {
			missing = append(missing, name)
		}
	}

	result := &Availability{
		MissingAttributes:   missing,
		AvailableAttributes: available,
		MatchingCredentials: make([]*models.Credential, 0),
	}
	if len(missing) > 0 {
		return result, nil
	}

	for _, c := range creds {
		if c.HasAll(wanted) {
			result.MatchingCredentials = append(result.MatchingCredentials, c)
		}
	}
	result.HasMatch = len(result.MatchingCredentials) > 0
	return result, nil
}

// Select returns the credential to disclose. An explicit credentialID is
// returned as stored, whether or not it satisfies the request. Otherwise the
// strategy picks among candidates; no candidate yields a nil credential and
// no error.
func (m *Matcher) Select(ctx context.Context, requested []string, credentialID id.CredentialID) (*models.Credential, *Availability, error) {
	availability, err := m.CheckAvailability(ctx, requested)
	if err != nil {
		return nil, nil, err
	}
	if !credentialID.IsNil() {
		cred, err := m.store.FindByID(ctx, credentialID)
		if err != nil {
			return nil, availability, err
		}
		return cred, availability, nil
	}
	if !availability.HasMatch {
		return nil, availability, nil
	}
	chosen := m.strategy.Pick(availability.MatchingCredentials)
	if chosen != nil {
		m.logger.DebugContext(ctx, "credential selected",
			"credential_id", chosen.ID,
			"candidates", len(availability.MatchingCredentials),
			"strategy", m.strategy.Name(),
		)
	}
	return chosen, availability, nil
}

