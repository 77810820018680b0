package models

import (
	"strings"
)

// Kind is the classified protocol message type.
type Kind string

const (
	KindConnectionRequest Kind = "connection-request"
	KindCredentialOffer   Kind = "credential-offer"
	KindCredentialIssue   Kind = "credential-issue"
	KindProofRequest      Kind = "proof-request"
	KindPresentation      Kind = "presentation"
	KindUnknown           Kind = "unknown"
)

// Message is an inbound protocol message. Body holds the full decoded JSON.
type Message struct {
	Type     string
	ID       string
	ThreadID string
	Body     map[string]any
}

// ParseMessage reads the discriminator from "@type" or "type" and the thread
// from "~thread.thid".
func ParseMessage(body map[string]any) Message {
	msg := Message{Body: body}
	if body == nil {
		msg.Body = map[string]any{}
		return msg
	}
	msg.Type = stringField(body, "@type")
	if msg.Type == "" {
		msg.Type = stringField(body, "type")
	}
	msg.ID = stringField(body, "@id")
	if msg.ID == "" {
		msg.ID = stringField(body, "id")
	}
	if thread, ok := body["~thread"].(map[string]any); ok {
		msg.ThreadID = stringField(thread, "thid")
	}
	if msg.ThreadID == "" {
		msg.ThreadID = stringField(body, "threadId")
	}
	return msg
}

// Kind classifies both full protocol URIs such as
// "https://didcomm.org/present-proof/1.0/request-presentation" and the short
// names used by local senders.
func (m Message) Kind() Kind {
	t := strings.ToLower(m.Type)
	switch t {
	case string(KindConnectionRequest), string(KindCredentialOffer), string(KindCredentialIssue),
		string(KindProofRequest), string(KindPresentation):
		return Kind(t)
	}
	family, segment := t, t
	if i := strings.LastIndex(t, "/"); i >= 0 {
		family, segment = t[:i], t[i+1:]
	}
	switch {
	case strings.Contains(family, "connections") && segment == "request":
		return KindConnectionRequest
	case strings.Contains(family, "issue-credential") && strings.Contains(segment, "offer"):
		return KindCredentialOffer
	case strings.Contains(family, "issue-credential") && strings.Contains(segment, "issue"):
		return KindCredentialIssue
	case strings.Contains(family, "present-proof") && strings.Contains(segment, "request"):
		return KindProofRequest
	case strings.Contains(family, "present-proof") && strings.Contains(segment, "presentation"):
		return KindPresentation
	}
	return KindUnknown
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
