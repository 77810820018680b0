package testutil

import (
	"time"

	credmodels "credex/internal/credential/models"
	trustmodels "credex/internal/trust/models"
	id "credex/pkg/domain"
)

// TestIDs provides fixed identifiers for deterministic test data.
var TestIDs = struct {
	CredentialID1 id.CredentialID
	CredentialID2 id.CredentialID
	SessionID1    id.SessionID
}{
	CredentialID1: "cred_11111111-1111-1111-1111-111111111111",
	CredentialID2: "cred_22222222-2222-2222-2222-222222222222",
	SessionID1:    "verification-aaaa0000-0000-0000-0000-000000000001",
}

// FixedTime is a stable timestamp for fixtures. Postgres keeps microseconds,
// so it carries none below that.
var FixedTime = time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)

// NewTestCredential builds a stored attribute-list credential with the given
// name/value pairs, in order.
func NewTestCredential(credID id.CredentialID, pairs ...string) *credmodels.Credential {
	attrs := make([]credmodels.Attribute, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		attrs = append(attrs, credmodels.Attribute{Name: pairs[i], Value: pairs[i+1]})
	}
	c := &credmodels.Credential{
		ID:             credID,
		OriginalFormat: credmodels.FormatAttributeList,
		Status:         credmodels.StatusStored,
		CreatedAt:      FixedTime,
		UpdatedAt:      FixedTime,
	}
	c.SetAttributes(attrs)
	return c
}

// NewTestIssuer builds a trusted issuer entry added at FixedTime plus offset.
func NewTestIssuer(did string, offset time.Duration) trustmodels.TrustedIssuer {
	return trustmodels.TrustedIssuer{
		DID:     did,
		Name:    "Issuer " + did,
		AddedBy: "test",
		AddedAt: FixedTime.Add(offset),
	}
}
