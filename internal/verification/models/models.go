package models

import (
	"slices"
	"time"

	credmodels "credex/internal/credential/models"
	id "credex/pkg/domain"
)

// Status is the verification session state. pending is the only
// non-terminal state and is never re-entered.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusDeclined Status = "declined"
)

func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusDeclined
}

// Requester identifies the external verifying party.
type Requester struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName,omitempty"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Label is the human-facing name reported back in callbacks.
func (r Requester) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.ExternalID
}

// TrustCheck records the issuer lookup performed during verification.
type TrustCheck struct {
	DID       string `json:"did"`
	Trusted   bool   `json:"trusted"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Result is the structured verification detail stored on a terminal session.
type Result struct {
	Verified bool        `json:"verified"`
	Message  string      `json:"message"`
	Matched  []string    `json:"matched"`
	Missing  []string    `json:"missing"`
	Extra    []string    `json:"extra"`
	Trust    *TrustCheck `json:"trust,omitempty"`
}

// Proof is the snapshot of credential data disclosed to the requester.
type Proof struct {
	CredentialID           id.CredentialID        `json:"credentialId"`
	Attributes             []credmodels.Attribute `json:"attributes"`
	SchemaID               string                 `json:"schemaId,omitempty"`
	CredentialDefinitionID string                 `json:"credentialDefinitionId,omitempty"`
}

// Outcome is the terminal transition applied by Complete.
type Outcome struct {
	Status Status
	Result *Result
	Proof  *Proof
}

func Verified(result *Result, proof *Proof) Outcome {
	return Outcome{Status: StatusVerified, Result: result, Proof: proof}
}

func Failed(result *Result, proof *Proof) Outcome {
	return Outcome{Status: StatusFailed, Result: result, Proof: proof}
}

// FailedWith builds a failed outcome carrying only a message.
func FailedWith(message string) Outcome {
	return Failed(&Result{Message: message, Matched: []string{}, Missing: []string{}, Extra: []string{}}, nil)
}

func Declined(message string) Outcome {
	return Outcome{
		Status: StatusDeclined,
		Result: &Result{Message: message, Matched: []string{}, Missing: []string{}, Extra: []string{}},
	}
}

// Session tracks one verification flow from request to terminal outcome.
type Session struct {
	ID                  id.SessionID `json:"id"`
	CorrelationID       string       `json:"correlationId,omitempty"`
	Requester           Requester    `json:"requester"`
	RequestedAttributes []string     `json:"requestedAttributes"`
	Status              Status       `json:"status"`
	CreatedAt           time.Time    `json:"createdAt"`
	CompletedAt         *time.Time   `json:"completedAt,omitempty"`
	ProofReceived       *Proof       `json:"proofReceived,omitempty"`
	VerificationResult  *Result      `json:"verificationResult,omitempty"`
}

// IsExpired reports whether a pending session is older than timeout at now.
// A zero timeout never expires.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	return s.Status == StatusPending && timeout > 0 && now.Sub(s.CreatedAt) >= timeout
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.RequestedAttributes = slices.Clone(s.RequestedAttributes)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.ProofReceived != nil {
		p := *s.ProofReceived
		p.Attributes = slices.Clone(p.Attributes)
		out.ProofReceived = &p
	}
	if s.VerificationResult != nil {
		r := *s.VerificationResult
		r.Matched = slices.Clone(r.Matched)
		r.Missing = slices.Clone(r.Missing)
		r.Extra = slices.Clone(r.Extra)
		if r.Trust != nil {
			tc := *r.Trust
			r.Trust = &tc
		}
		out.VerificationResult = &r
	}
	return &out
}
