package audit

import "time"

// Event is emitted from domain logic to capture holder decisions and
// verification outcomes. It is transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	Timestamp time.Time  `json:"timestamp"`
	Action    AuditEvent `json:"action"`
	// Subject is the notification or credential the event is about.
	Subject   string `json:"subject"`
	SessionID string `json:"sessionId,omitempty"`
	Requester string `json:"requester,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type AuditEvent string

const (
	EventCredentialAccepted    AuditEvent = "credential.accepted"
	EventCredentialDeclined    AuditEvent = "credential.declined"
	EventCredentialIssued      AuditEvent = "credential.issued"
	EventVerificationCompleted AuditEvent = "verification.completed"
	EventCallbackFailed        AuditEvent = "callback.failed"
)
