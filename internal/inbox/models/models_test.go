package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	credmodels "credex/internal/credential/models"
)

func TestMessageKind(t *testing.T) {
	tests := []struct {
		typ  string
		want Kind
	}{
		{"https://didcomm.org/connections/1.0/request", KindConnectionRequest},
		{"https://didcomm.org/issue-credential/1.0/offer-credential", KindCredentialOffer},
		{"https://didcomm.org/issue-credential/1.0/issue-credential", KindCredentialIssue},
		{"https://didcomm.org/present-proof/1.0/request-presentation", KindProofRequest},
		{"https://didcomm.org/present-proof/1.0/presentation", KindPresentation},
		{"proof-request", KindProofRequest},
		{"Credential-Offer", KindCredentialOffer},
		{"https://didcomm.org/issue-credential/1.0/request-credential", KindUnknown},
		{"https://didcomm.org/trust-ping/1.0/ping", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, Message{Type: tt.typ}.Kind())
		})
	}
}

func TestParseMessage(t *testing.T) {
	t.Run("didcomm envelope", func(t *testing.T) {
		msg := ParseMessage(map[string]any{
			"@type":   "https://didcomm.org/present-proof/1.0/presentation",
			"@id":     "msg-1",
			"~thread": map[string]any{"thid": "corr-1"},
		})
		assert.Equal(t, "msg-1", msg.ID)
		assert.Equal(t, "corr-1", msg.ThreadID)
		assert.Equal(t, KindPresentation, msg.Kind())
	})

	t.Run("plain type field", func(t *testing.T) {
		msg := ParseMessage(map[string]any{"type": "credential-offer", "id": "x"})
		assert.Equal(t, KindCredentialOffer, msg.Kind())
		assert.Equal(t, "x", msg.ID)
	})

	t.Run("nil body", func(t *testing.T) {
		msg := ParseMessage(nil)
		assert.NotNil(t, msg.Body)
		assert.Equal(t, KindUnknown, msg.Kind())
	})
}

func TestNotificationClone(t *testing.T) {
	offer := &credmodels.Credential{ID: "cred_1"}
	offer.SetAttributes([]credmodels.Attribute{{Name: "name", Value: "Alice"}})
	n := &Notification{
		ID:           "notification-1",
		Offer:        offer,
		ProofRequest: &ProofRequest{RequestedAttributes: []string{"name"}},
		Result:       &DecisionResult{RequesterAck: &RequesterAck{Details: map[string]any{"k": "v"}}},
	}
	c := n.Clone()
	c.Offer.Attributes[0].Value = "Mallory"
	c.ProofRequest.RequestedAttributes[0] = "email"
	c.Result.RequesterAck.Details["k"] = "changed"

	assert.Equal(t, "Alice", n.Offer.Attributes[0].Value)
	assert.Equal(t, "name", n.ProofRequest.RequestedAttributes[0])
	assert.Equal(t, "v", n.Result.RequesterAck.Details["k"])
}

func TestTypeActionable(t *testing.T) {
	assert.True(t, TypeCredentialOffer.Actionable())
	assert.True(t, TypeProofRequest.Actionable())
	assert.False(t, TypeConnection.Actionable())
	assert.False(t, TypePresentation.Actionable())
}
