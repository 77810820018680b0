package models

import (
	"maps"
	"slices"
	"time"

	credmodels "credex/internal/credential/models"
	vmodels "credex/internal/verification/models"
	id "credex/pkg/domain"
)

// Type classifies what a notification asks of the holder.
type Type string

const (
	TypeConnection      Type = "connection"
	TypeCredentialOffer Type = "credential-offer"
	TypeCredentialIssue Type = "credential-issued"
	TypeProofRequest    Type = "proof-request"
	TypePresentation    Type = "presentation"
)

// Actionable reports whether the holder can accept or decline this type.
func (t Type) Actionable() bool {
	return t == TypeCredentialOffer || t == TypeProofRequest
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

func (s Status) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

// ProofRequest is the verifier side of a proof-request notification.
type ProofRequest struct {
	RequestedAttributes []string          `json:"requestedAttributes"`
	Requester           vmodels.Requester `json:"requester"`
	CorrelationID       string            `json:"correlationId,omitempty"`
	SessionID           id.SessionID      `json:"sessionId"`
	// PresentationReceived is set when a presentation names this request's thread.
	PresentationReceived bool `json:"presentationReceived,omitempty"`
}

// Notification is the holder-facing record of an inbound message.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	Type      Type              `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Status    Status            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	DecidedAt *time.Time        `json:"decidedAt,omitempty"`

	// Offer holds the normalized attributes of a credential offer. Nothing is
	// stored until the holder accepts.
	Offer        *credmodels.Credential `json:"credentialOffer,omitempty"`
	ProofRequest *ProofRequest          `json:"proofRequest,omitempty"`
	CredentialID id.CredentialID        `json:"credentialId,omitempty"`
	// Reply is the protocol response returned to the sender, if any.
	Reply  map[string]any  `json:"reply,omitempty"`
	Raw    map[string]any  `json:"rawMessage,omitempty"`
	Result *DecisionResult `json:"result,omitempty"`
}

func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	out := *n
	if n.DecidedAt != nil {
		t := *n.DecidedAt
		out.DecidedAt = &t
	}
	out.Offer = n.Offer.Clone()
	if n.ProofRequest != nil {
		pr := *n.ProofRequest
		pr.RequestedAttributes = slices.Clone(pr.RequestedAttributes)
		out.ProofRequest = &pr
	}
	out.Reply = maps.Clone(n.Reply)
	out.Raw = maps.Clone(n.Raw)
	if n.Result != nil {
		r := *n.Result
		if r.RequesterAck != nil {
			ack := *r.RequesterAck
			ack.Details = maps.Clone(ack.Details)
			r.RequesterAck = &ack
		}
		out.Result = &r
	}
	return &out
}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// Decision is a holder's answer to a pending notification. CredentialID
// optionally pins the credential disclosed for a proof request.
type Decision struct {
	NotificationID id.NotificationID `json:"notificationId"`
	Action         Action            `json:"action"`
	CredentialID   id.CredentialID   `json:"credentialId,omitempty"`
}

// RequesterAck is the requester's echo to the callback.
type RequesterAck struct {
	Verified bool           `json:"verified"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// DecisionResult is stored on the notification and returned verbatim on replays.
type DecisionResult struct {
	Action        Action          `json:"action"`
	Status        Status          `json:"status"`
	CredentialID  id.CredentialID `json:"credentialId,omitempty"`
	SessionID     id.SessionID    `json:"sessionId,omitempty"`
	SessionStatus vmodels.Status  `json:"sessionStatus,omitempty"`
	Verified      bool            `json:"verified"`
	Message       string          `json:"message,omitempty"`
	// CallbackDelivered is false when no callback was configured or delivery failed.
	CallbackDelivered bool          `json:"callbackDelivered"`
	RequesterAck      *RequesterAck `json:"requesterAck,omitempty"`
	Replayed          bool          `json:"replayed,omitempty"`
}

// VerificationRequest is an external requester asking the holder for a proof.
type VerificationRequest struct {
	Requester           vmodels.Requester
	RequestedAttributes []string
	CorrelationID       string
}

// DefaultRequestedAttributes is used when a verification request names none.
var DefaultRequestedAttributes = []string{"name", "email", "department", "issuer_did", "age"}

// CallbackPayload is POSTed to the requester when a proof request is decided.
type CallbackPayload struct {
	Action    string         `json:"action"`
	SessionID id.SessionID   `json:"sessionId"`
	Verified  bool           `json:"verified"`
	Message   string         `json:"message"`
	Requester string         `json:"requester"`
	Proof     *vmodels.Proof `json:"proof,omitempty"`
}

// Callback actions.
const (
	CallbackShare   = "share"
	CallbackDecline = "decline"
)
