package models

import (
	"slices"
	"strings"
	"time"

	id "credex/pkg/domain"
)

// Format tags the wire shape a credential was normalized from.
type Format string

const (
	FormatOffer         Format = "offer"
	FormatDirectPreview Format = "direct-preview"
	FormatSimpleKV      Format = "simple-kv"
	FormatAttributeList Format = "attribute-list"
	FormatUnknown       Format = "unknown"
)

// Status is the holder-facing lifecycle of a stored credential.
type Status string

const (
	StatusStored        Status = "stored"
	StatusOfferReceived Status = "offer-received"
	StatusDone          Status = "done"
	StatusDeclined      Status = "declined"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusStored, StatusOfferReceived, StatusDone, StatusDeclined:
		return true
	}
	return false
}

// Attribute is a single disclosed claim. Name keeps its original case for display.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Key is the case-normalized name used for every comparison.
func (a Attribute) Key() string {
	return NormalizeName(a.Name)
}

// NormalizeName lower-cases and trims an attribute name for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Preview mirrors Attributes in the nested layout older clients read.
type Preview struct {
	Attributes []Attribute `json:"attributes"`
}

// Credential is the canonical stored record. Attributes and Preview are always
// set together through SetAttributes.
type Credential struct {
	ID                     id.CredentialID `json:"id"`
	OriginalFormat         Format          `json:"originalFormat"`
	Status                 Status          `json:"status"`
	Attributes             []Attribute     `json:"attributes"`
	Preview                Preview         `json:"credentialPreview"`
	SchemaID               string          `json:"schemaId,omitempty"`
	CredentialDefinitionID string          `json:"credentialDefinitionId,omitempty"`
	IsRevoked              bool            `json:"isRevoked"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

// SetAttributes replaces the attribute list and its preview mirror. A nil
// slice is stored as empty.
func (c *Credential) SetAttributes(attrs []Attribute) {
	if attrs == nil {
		attrs = []Attribute{}
	}
	c.Attributes = attrs
	c.Preview = Preview{Attributes: slices.Clone(attrs)}
}

// Lookup finds an attribute by case-insensitive name.
func (c *Credential) Lookup(name string) (Attribute, bool) {
	key := NormalizeName(name)
	for _, a := range c.Attributes {
		if a.Key() == key {
			return a, true
		}
	}
	return Attribute{}, false
}

// NameSet returns the case-normalized attribute names.
func (c *Credential) NameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Attributes))
	for _, a := range c.Attributes {
		set[a.Key()] = struct{}{}
	}
	return set
}

// HasAll reports whether every name in names is carried by this credential.
func (c *Credential) HasAll(names []string) bool {
	set := c.NameSet()
	for _, n := range names {
		if _, ok := set[NormalizeName(n)]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so store callers never share slices with the store.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Attributes = slices.Clone(c.Attributes)
	if out.Attributes == nil {
		out.Attributes = []Attribute{}
	}
	out.Preview = Preview{Attributes: slices.Clone(c.Preview.Attributes)}
	if out.Preview.Attributes == nil {
		out.Preview.Attributes = []Attribute{}
	}
	return &out
}

// Filter selects credentials in List. Zero value matches everything.
type Filter struct {
	Status          Status
	Format          Format
	ExcludeDeclined bool
	ExcludeRevoked  bool
}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c *Credential) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Format != "" && c.OriginalFormat != f.Format {
		return false
	}
	if f.ExcludeDeclined && c.Status == StatusDeclined {
		return false
	}
	if f.ExcludeRevoked && c.IsRevoked {
		return false
	}
	return true
}
