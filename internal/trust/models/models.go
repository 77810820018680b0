package models

import (
	"strings"
	"time"
)

// SovPrefix is stripped before DIDs are compared or stored. Registries keyed
// on bare Indy identifiers must still match fully qualified did:sov DIDs.
const SovPrefix = "did:sov:"

// TrustedIssuer is an entry in the trust registry.
type TrustedIssuer struct {
	DID     string    `json:"did"`
	Name    string    `json:"name"`
	AddedBy string    `json:"addedBy,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// NormalizeDID trims whitespace and strips the did:sov: method prefix.
func NormalizeDID(did string) string {
	did = strings.TrimSpace(did)
	if len(did) >= len(SovPrefix) && strings.EqualFold(did[:len(SovPrefix)], SovPrefix) {
		return did[len(SovPrefix):]
	}
	return did
}
