// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "credex/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a NotificationID where a SessionID is expected.
// Credential ids may be supplied by issuers, so none of these are constrained to UUIDs;
// generated ids carry a readable prefix.
type (
	CredentialID   string
	SessionID      string
	NotificationID string
)

const (
	credentialPrefix   = "cred_"
	sessionPrefix      = "verification-"
	notificationPrefix = "notification-"

	maxIDLength = 200
)

// Generators.

func NewCredentialID() CredentialID     { return CredentialID(credentialPrefix + uuid.NewString()) }
func NewSessionID() SessionID           { return SessionID(sessionPrefix + uuid.NewString()) }
func NewNotificationID() NotificationID { return NotificationID(notificationPrefix + uuid.NewString()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseCredentialID(s string) (CredentialID, error) {
	v, err := parseID(s, "credential ID")
	return CredentialID(v), err
}

func ParseSessionID(s string) (SessionID, error) {
	v, err := parseID(s, "session ID")
	return SessionID(v), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	v, err := parseID(s, "notification ID")
	return NotificationID(v), err
}

func (id CredentialID) String() string   { return string(id) }
func (id SessionID) String() string      { return string(id) }
func (id NotificationID) String() string { return string(id) }

func (id CredentialID) IsNil() bool   { return id == "" }
func (id SessionID) IsNil() bool      { return id == "" }
func (id NotificationID) IsNil() bool { return id == "" }

func parseID(s, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	return s, nil
}
