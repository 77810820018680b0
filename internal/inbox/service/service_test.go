package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CallbackNotifier

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credex/internal/audit"
	credmodels "credex/internal/credential/models"
	credservice "credex/internal/credential/service"
	credstore "credex/internal/credential/store"
	"credex/internal/inbox/metrics"
	"credex/internal/inbox/models"
	"credex/internal/inbox/service/mocks"
	"credex/internal/inbox/store"
	"credex/internal/matcher"
	vmodels "credex/internal/verification/models"
	vservice "credex/internal/verification/service"
	vstore "credex/internal/verification/store"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
)

// fakeTrust answers from a fixed set and counts lookups.
type fakeTrust struct {
	mu      sync.Mutex
	trusted map[string]bool
	err     error
	calls   atomic.Int32
}

func (f *fakeTrust) IsTrusted(_ context.Context, did string) (bool, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.trusted[did], nil
}

const callbackURL = "http://requester.test/callback"

var requester = vmodels.Requester{ExternalID: "minecraft", DisplayName: "Steve", CallbackURL: callbackURL}

type RouterSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	callbacks *mocks.MockCallbackNotifier
	trust     *fakeTrust
	creds     *credservice.Service
	sessions  *vservice.Manager
	audit     *audit.InMemoryStore
	metrics   *metrics.Metrics
	clock     time.Time
	router    *Router
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.callbacks = mocks.NewMockCallbackNotifier(s.ctrl)
	s.trust = &fakeTrust{trusted: map[string]bool{"DID_A": true}}
	s.clock = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return s.clock }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	creds, err := credservice.NewService(s.ctx, credstore.NewInMemory(), credservice.WithLogger(logger))
	s.Require().NoError(err)
	s.creds = creds
	s.sessions = vservice.NewManager(vstore.NewInMemory(), s.trust,
		vservice.WithLogger(logger), vservice.WithClock(now))
	s.audit = audit.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.router = NewRouter(store.NewInMemory(0), creds, matcher.New(creds, matcher.WithLogger(logger)), s.sessions,
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithClock(now),
		WithCallbackNotifier(s.callbacks),
		WithAuditor(audit.NewPublisher(s.audit)),
		WithWalletIdentity("did:key:holder", "http://wallet.test/didcomm"),
	)
}

func (s *RouterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RouterSuite) storeCredential(attrs ...credmodels.Attribute) *credmodels.Credential {
	c := &credmodels.Credential{OriginalFormat: credmodels.FormatAttributeList}
	c.SetAttributes(attrs)
	stored, err := s.creds.Add(s.ctx, c)
	s.Require().NoError(err)
	return stored
}

func (s *RouterSuite) aliceCredential() *credmodels.Credential {
	return s.storeCredential(
		credmodels.Attribute{Name: "name", Value: "Alice"},
		credmodels.Attribute{Name: "issuer_did", Value: "DID_A"},
	)
}

func (s *RouterSuite) requestProof(attrs ...string) *models.Notification {
	n, err := s.router.RequestVerification(s.ctx, models.VerificationRequest{
		Requester:           requester,
		RequestedAttributes: attrs,
		CorrelationID:       "corr-" + string(id.NewNotificationID()),
	})
	s.Require().NoError(err)
	return n
}

func (s *RouterSuite) session(n *models.Notification) *vmodels.Session {
	sess, err := s.sessions.Get(s.ctx, string(n.ProofRequest.SessionID))
	s.Require().NoError(err)
	return sess
}

func (s *RouterSuite) auditActions(subject string) []audit.AuditEvent {
	events, err := s.audit.ListBySubject(s.ctx, subject)
	s.Require().NoError(err)
	out := make([]audit.AuditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

// =============================================================================
// Inbound messages
// =============================================================================

func (s *RouterSuite) TestHandleMessage_Offer() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type": "https://didcomm.org/issue-credential/1.0/offer-credential",
		"@id":   "offer-1",
		"credential_preview": map[string]any{
			"attributes": []any{
				map[string]any{"name": "name", "value": "Alice"},
				map[string]any{"name": "age", "value": 30},
			},
		},
	}))
	s.Require().NoError(err)
	s.Equal(models.TypeCredentialOffer, n.Type)
	s.Equal(models.StatusPending, n.Status)
	s.Require().NotNil(n.Offer)
	s.Len(n.Offer.Attributes, 2)
	s.Equal("30", n.Offer.Attributes[1].Value)

	stored, err := s.creds.List(s.ctx, credmodels.Filter{})
	s.Require().NoError(err)
	s.Empty(stored, "offers are not stored before acceptance")
}

// Invariant: a malformed offer still reaches the holder.
func (s *RouterSuite) TestHandleMessage_MalformedOffer() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type":              "credential-offer",
		"credential_preview": "not-an-object",
	}))
	s.Require().NoError(err)
	s.Equal(models.StatusPending, n.Status)
	s.NotNil(n.Offer.Attributes)
	s.Empty(n.Offer.Attributes)
}

func (s *RouterSuite) TestHandleMessage_OfferFromAttachment() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type": "https://didcomm.org/issue-credential/1.0/offer-credential",
		"offers~attach": []any{map[string]any{"data": map[string]any{
			"credential": map[string]any{"email": "a@example.com"},
		}}},
	}))
	s.Require().NoError(err)
	s.Equal(credmodels.FormatSimpleKV, n.Offer.OriginalFormat)
	s.Equal("a@example.com", n.Offer.Attributes[0].Value)
}

func (s *RouterSuite) TestHandleMessage_IssueStoresDone() {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"credential":{"name":"Alice","issuer_did":"DID_A"}}`))
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type": "https://didcomm.org/issue-credential/1.0/issue-credential",
		"credentials~attach": []any{map[string]any{
			"data": map[string]any{"base64": encoded},
		}},
	}))
	s.Require().NoError(err)
	s.Equal(models.TypeCredentialIssue, n.Type)
	s.Equal(models.StatusAccepted, n.Status)

	cred, err := s.creds.FindByID(s.ctx, n.CredentialID)
	s.Require().NoError(err)
	s.Equal(credmodels.StatusDone, cred.Status)
	s.True(cred.HasAll([]string{"name", "issuer_did"}))
	s.Equal([]audit.AuditEvent{audit.EventCredentialIssued}, s.auditActions(string(cred.ID)))
}

func (s *RouterSuite) TestHandleMessage_ConnectionRequest() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type": "https://didcomm.org/connections/1.0/request",
		"@id":   "conn-1",
		"label": "Faber",
	}))
	s.Require().NoError(err)
	s.Equal(models.TypeConnection, n.Type)
	s.Equal(models.StatusAccepted, n.Status)
	s.Contains(n.Message, "Faber")
	s.Equal(map[string]any{"thid": "conn-1"}, n.Reply["~thread"])

	_, err = s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *RouterSuite) TestHandleMessage_ProofRequestOpensSession() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type":   "https://didcomm.org/present-proof/1.0/request-presentation",
		"@id":     "req-1",
		"~thread": map[string]any{"thid": "thread-9"},
		"requester": map[string]any{
			"externalId":  "verifier",
			"callbackUrl": callbackURL,
		},
		"request_presentations~attach": []any{map[string]any{"data": map[string]any{
			"requested_attributes": map[string]any{
				"attr_2": map[string]any{"name": "email"},
				"attr_1": map[string]any{"name": "name", "restrictions": []any{}},
			},
		}}},
	}))
	s.Require().NoError(err)
	s.Equal(models.TypeProofRequest, n.Type)
	s.Equal([]string{"name", "email"}, n.ProofRequest.RequestedAttributes)
	s.Equal("verifier", n.ProofRequest.Requester.ExternalID)

	// A poll before the holder acts sees a defined pending state.
	sess, err := s.sessions.Get(s.ctx, "thread-9")
	s.Require().NoError(err)
	s.Equal(vmodels.StatusPending, sess.Status)
	s.Equal(n.ProofRequest.SessionID, sess.ID)
}

func (s *RouterSuite) TestHandleMessage_ProofRequestWithoutAttributes() {
	_, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{"@type": "proof-request"}))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RouterSuite) TestHandleMessage_PresentationOnThread() {
	n := s.requestProof("name")

	got, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type":   "https://didcomm.org/present-proof/1.0/presentation",
		"~thread": map[string]any{"thid": n.ProofRequest.CorrelationID},
	}))
	s.Require().NoError(err)
	s.Equal(n.ID, got.ID)
	s.True(got.ProofRequest.PresentationReceived)
	s.Equal(models.StatusPending, got.Status)

	other, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{"@type": "presentation"}))
	s.Require().NoError(err)
	s.Equal(models.TypePresentation, other.Type)
}

func (s *RouterSuite) TestHandleMessage_Unsupported() {
	_, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{"@type": "https://didcomm.org/trust-ping/1.0/ping"}))
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MessagesTotal.WithLabelValues("unknown")))
}

func (s *RouterSuite) TestRequestVerification_Defaults() {
	n, err := s.router.RequestVerification(s.ctx, models.VerificationRequest{Requester: requester})
	s.Require().NoError(err)
	s.Equal(models.DefaultRequestedAttributes, n.ProofRequest.RequestedAttributes)

	_, err = s.router.RequestVerification(s.ctx, models.VerificationRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// =============================================================================
// Offer decisions
// =============================================================================

func (s *RouterSuite) TestDecide_AcceptOffer() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type":       "credential-offer",
		"attributes":  []any{map[string]any{"name": "name", "value": "Alice"}},
		"schema_id":   "schema:1",
		"cred_def_id": "def:1",
	}))
	s.Require().NoError(err)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, res.Status)
	s.False(res.CredentialID.IsNil())

	cred, err := s.creds.FindByID(s.ctx, res.CredentialID)
	s.Require().NoError(err)
	s.Equal(credmodels.StatusStored, cred.Status)
	s.Equal("schema:1", cred.SchemaID)

	replay, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(res.CredentialID, replay.CredentialID)

	all, err := s.creds.List(s.ctx, credmodels.Filter{})
	s.Require().NoError(err)
	s.Len(all, 1, "replay must not store twice")
	s.Equal([]audit.AuditEvent{audit.EventCredentialAccepted}, s.auditActions(string(n.ID)))
}

func (s *RouterSuite) TestDecide_DeclineOffer() {
	n, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{
		"@type":      "credential-offer",
		"attributes": []any{map[string]any{"name": "name", "value": "Alice"}},
	}))
	s.Require().NoError(err)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionDecline})
	s.Require().NoError(err)
	s.Equal(models.StatusDeclined, res.Status)

	all, err := s.creds.List(s.ctx, credmodels.Filter{})
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *RouterSuite) TestDecide_Validation() {
	_, err := s.router.Decide(s.ctx, models.Decision{NotificationID: "notification-x", Action: "maybe"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.router.Decide(s.ctx, models.Decision{NotificationID: "notification-x", Action: models.ActionAccept})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Proof request decisions
// =============================================================================

func (s *RouterSuite) TestAccept_VerifiedByTrustedIssuer() {
	cred := s.aliceCredential()
	n := s.requestProof("name")

	s.callbacks.EXPECT().Notify(gomock.Any(), callbackURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p models.CallbackPayload) (*models.RequesterAck, error) {
			s.Equal(models.CallbackShare, p.Action)
			s.True(p.Verified)
			s.Equal("Steve", p.Requester)
			s.Require().NotNil(p.Proof)
			s.Equal(cred.ID, p.Proof.CredentialID)
			return &models.RequesterAck{Verified: true, Message: "welcome"}, nil
		})

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, res.Status)
	s.Equal(vmodels.StatusVerified, res.SessionStatus)
	s.True(res.Verified)
	s.Equal("Verified by trusted issuer: DID_A", res.Message)
	s.True(res.CallbackDelivered)
	s.Equal("welcome", res.RequesterAck.Message)
	s.Equal(cred.ID, res.CredentialID)

	sess := s.session(n)
	s.Equal(vmodels.StatusVerified, sess.Status)
	s.NotNil(sess.CompletedAt)

	stored, err := s.router.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, stored.Status)
	s.Equal("welcome", stored.Result.RequesterAck.Message)
	s.Equal([]audit.AuditEvent{audit.EventVerificationCompleted}, s.auditActions(string(n.ID)))
}

func (s *RouterSuite) TestAccept_UntrustedIssuer() {
	s.trust.trusted = map[string]bool{}
	s.aliceCredential()
	n := s.requestProof("name")

	s.callbacks.EXPECT().Notify(gomock.Any(), callbackURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p models.CallbackPayload) (*models.RequesterAck, error) {
			s.False(p.Verified)
			return nil, nil
		})

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, res.Status, "the holder acted; the outcome lives on the session")
	s.Equal(vmodels.StatusFailed, res.SessionStatus)
	s.Contains(res.Message, "unauthorized")
}

// Invariant: an unreachable registry fails the session and never verifies it.
func (s *RouterSuite) TestAccept_RegistryUnavailable() {
	s.trust.err = dErrors.New(dErrors.CodeUnavailable, "trust registry unreachable: connection refused")
	s.aliceCredential()
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(vmodels.StatusFailed, s.session(n).Status)
	s.Contains(res.Message, "Trust registry unreachable")
}

// Invariant: missing data is reported as missing and never reaches the registry.
func (s *RouterSuite) TestAccept_NoMatchingCredential() {
	s.aliceCredential()
	n := s.requestProof("name", "phone")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(vmodels.StatusFailed, res.SessionStatus)
	s.Equal(noMatchMessage, res.Message)
	s.Equal([]string{"phone"}, s.session(n).VerificationResult.Missing)
	s.Zero(s.trust.calls.Load())
}

func (s *RouterSuite) TestAccept_ExplicitCredentialMismatch() {
	partial := s.storeCredential(credmodels.Attribute{Name: "email", Value: "a@example.com"})
	s.aliceCredential()
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept, CredentialID: partial.ID})
	s.Require().NoError(err)
	s.Equal(vmodels.StatusFailed, res.SessionStatus)
	s.Contains(res.Message, "missing requested attributes")
	s.Equal(partial.ID, res.CredentialID)
	s.Zero(s.trust.calls.Load())
}

func (s *RouterSuite) TestAccept_ExplicitCredentialOverridesStrategy() {
	s.aliceCredential()
	second := s.storeCredential(
		credmodels.Attribute{Name: "name", Value: "Bob"},
		credmodels.Attribute{Name: "issuer_did", Value: "DID_A"},
	)
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept, CredentialID: second.ID})
	s.Require().NoError(err)
	s.True(res.Verified)
	s.Equal(second.ID, s.session(n).ProofReceived.CredentialID)
}

func (s *RouterSuite) TestAccept_UnknownExplicitCredential() {
	n := s.requestProof("name")

	_, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept, CredentialID: "cred_missing"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	stored, err := s.router.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Equal(vmodels.StatusPending, s.session(n).Status)
}

// Invariant: a failed callback never rolls back the committed session.
func (s *RouterSuite) TestAccept_CallbackFailure() {
	s.aliceCredential()
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.False(res.CallbackDelivered)
	s.Equal(vmodels.StatusVerified, s.session(n).Status)
	s.Equal([]audit.AuditEvent{audit.EventVerificationCompleted, audit.EventCallbackFailed}, s.auditActions(string(n.ID)))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CallbacksTotal.WithLabelValues(metrics.CallbackFailed)))
}

// A slow requester must not hold the notification lock for the callback.
func (s *RouterSuite) TestAccept_CallbackRunsOutsideNotificationLock() {
	s.aliceCredential()
	n := s.requestProof("name")

	s.callbacks.EXPECT().Notify(gomock.Any(), callbackURL, gomock.Any()).
		DoAndReturn(func(context.Context, string, models.CallbackPayload) (*models.RequesterAck, error) {
			acquired := make(chan struct{})
			go func() {
				_ = s.router.locks.WithLock(string(n.ID), func() error { return nil })
				close(acquired)
			}()
			select {
			case <-acquired:
			case <-time.After(time.Second):
				s.Fail("notification lock held while calling the requester")
				return nil, errors.New("lock held")
			}

			// Already decided: a concurrent decision replays without waiting.
			replay, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionDecline})
			s.Require().NoError(err)
			s.True(replay.Replayed)
			s.Equal(models.StatusAccepted, replay.Status)
			s.False(replay.CallbackDelivered)
			return &models.RequesterAck{Verified: true, Message: "welcome"}, nil
		})

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.True(res.CallbackDelivered)

	stored, err := s.router.Get(s.ctx, n.ID)
	s.Require().NoError(err)
	s.True(stored.Result.CallbackDelivered)
	s.Require().NotNil(stored.Result.RequesterAck)
	s.Equal("welcome", stored.Result.RequesterAck.Message)
}

func (s *RouterSuite) TestAccept_NoCallbackURL() {
	s.aliceCredential()
	n, err := s.router.RequestVerification(s.ctx, models.VerificationRequest{
		Requester:           vmodels.Requester{ExternalID: "poller"},
		RequestedAttributes: []string{"name"},
	})
	s.Require().NoError(err)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.True(res.Verified)
	s.False(res.CallbackDelivered)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CallbacksTotal.WithLabelValues(metrics.CallbackSkipped)))
}

// Invariant: declining twice yields the same terminal state and one callback.
func (s *RouterSuite) TestDecline_Idempotent() {
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), callbackURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p models.CallbackPayload) (*models.RequesterAck, error) {
			s.Equal(models.CallbackDecline, p.Action)
			s.False(p.Verified)
			s.Nil(p.Proof)
			return nil, nil
		}).Times(1)

	first, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionDecline})
	s.Require().NoError(err)
	s.Equal(models.StatusDeclined, first.Status)
	s.Equal(vmodels.StatusDeclined, first.SessionStatus)
	sessionAfterFirst := s.session(n)

	second, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionDecline})
	s.Require().NoError(err)
	s.True(second.Replayed)
	second.Replayed = false
	s.Equal(first, second)
	s.Equal(sessionAfterFirst, s.session(n))
}

// Invariant: racing decisions on one notification complete the session once
// and call back once.
func (s *RouterSuite) TestDecide_ConcurrentSameNotification() {
	s.aliceCredential()
	n := s.requestProof("name")
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)

	var wg sync.WaitGroup
	var replays atomic.Int32
	for i := range 10 {
		action := models.ActionAccept
		if i%2 == 1 {
			action = models.ActionDecline
		}
		wg.Go(func() {
			res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: action})
			if err == nil && res.Replayed {
				replays.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(9), replays.Load())
	s.True(s.session(n).Status.IsTerminal())
}

func (s *RouterSuite) TestAccept_SessionAlreadyExpired() {
	s.aliceCredential()
	n := s.requestProof("name")
	_, err := s.sessions.Complete(s.ctx, string(n.ProofRequest.SessionID), vmodels.FailedWith(vservice.ExpiredMessage))
	s.Require().NoError(err)
	s.callbacks.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	res, err := s.router.Decide(s.ctx, models.Decision{NotificationID: n.ID, Action: models.ActionAccept})
	s.Require().NoError(err)
	s.Equal(vmodels.StatusFailed, res.SessionStatus)
	s.Equal(vservice.ExpiredMessage, res.Message)
	s.False(res.CallbackDelivered)
}

// =============================================================================
// Availability, listing, deletion
// =============================================================================

func (s *RouterSuite) TestCheckAvailability() {
	cred := s.storeCredential(
		credmodels.Attribute{Name: "name", Value: "Alice"},
		credmodels.Attribute{Name: "email", Value: "a@example.com"},
		credmodels.Attribute{Name: "issuer_did", Value: "DID_A"},
	)
	n := s.requestProof("name", "email")

	avail, err := s.router.CheckAvailability(s.ctx, n.ID)
	s.Require().NoError(err)
	s.True(avail.HasMatch)
	s.Empty(avail.MissingAttributes)
	s.Require().Len(avail.MatchingCredentials, 1)
	s.Equal(cred.ID, avail.MatchingCredentials[0].ID)

	offer, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{"@type": "credential-offer"}))
	s.Require().NoError(err)
	_, err = s.router.CheckAvailability(s.ctx, offer.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *RouterSuite) TestListAndDelete() {
	pending := s.requestProof("name")
	_, err := s.router.HandleMessage(s.ctx, models.ParseMessage(map[string]any{"@type": "connection-request", "@id": "c"}))
	s.Require().NoError(err)

	list, err := s.router.List(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(pending.ID, list[0].ID)

	all, err := s.router.List(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	s.Require().NoError(s.router.Delete(s.ctx, pending.ID))
	_, err = s.router.Get(s.ctx, pending.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.router.Delete(s.ctx, pending.ID), dErrors.CodeNotFound))
}
