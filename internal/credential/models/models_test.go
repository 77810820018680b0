package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_SetAttributesMirrorsPreview(t *testing.T) {
	c := &Credential{}
	c.SetAttributes([]Attribute{{Name: "Email", Value: "a@example.com"}})

	assert.Equal(t, c.Attributes, c.Preview.Attributes)

	c.Attributes[0].Value = "changed"
	assert.Equal(t, "a@example.com", c.Preview.Attributes[0].Value, "preview must not alias attributes")

	c.SetAttributes(nil)
	assert.NotNil(t, c.Attributes)
	assert.Empty(t, c.Preview.Attributes)
}

func TestCredential_LookupIsCaseInsensitive(t *testing.T) {
	c := &Credential{}
	c.SetAttributes([]Attribute{{Name: "Full Name", Value: "Ada"}, {Name: "age", Value: "36"}})

	got, ok := c.Lookup("  full name ")
	require.True(t, ok)
	assert.Equal(t, "Full Name", got.Name, "display name is preserved")

	_, ok = c.Lookup("email")
	assert.False(t, ok)

	assert.True(t, c.HasAll([]string{"AGE", "full name"}))
	assert.False(t, c.HasAll([]string{"age", "email"}))
	assert.True(t, c.HasAll(nil))
}

func TestCredential_CloneIsDeep(t *testing.T) {
	c := &Credential{ID: "cred_1"}
	c.SetAttributes([]Attribute{{Name: "name", Value: "Ada"}})

	clone := c.Clone()
	clone.Attributes[0].Value = "Grace"
	clone.Preview.Attributes[0].Value = "Grace"

	assert.Equal(t, "Ada", c.Attributes[0].Value)
	assert.Equal(t, "Ada", c.Preview.Attributes[0].Value)
	assert.Nil(t, (*Credential)(nil).Clone())
}

func TestFilter_Matches(t *testing.T) {
	declined := &Credential{Status: StatusDeclined, OriginalFormat: FormatOffer}
	revoked := &Credential{Status: StatusStored, OriginalFormat: FormatSimpleKV, IsRevoked: true}
	stored := &Credential{Status: StatusStored, OriginalFormat: FormatSimpleKV}

	tests := []struct {
		name   string
		filter Filter
		cred   *Credential
		want   bool
	}{
		{"zero filter matches declined", Filter{}, declined, true},
		{"exclude declined", Filter{ExcludeDeclined: true}, declined, false},
		{"exclude revoked", Filter{ExcludeRevoked: true}, revoked, false},
		{"status match", Filter{Status: StatusStored}, stored, true},
		{"status mismatch", Filter{Status: StatusDone}, stored, false},
		{"format mismatch", Filter{Format: FormatOffer}, stored, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.cred))
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusOfferReceived.IsValid())
	assert.False(t, Status("archived").IsValid())
	assert.False(t, Status("").IsValid())
}
