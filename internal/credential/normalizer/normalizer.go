// Package normalizer turns the attribute-bearing payloads a wallet receives
// into the canonical credential record.
//
// Recognized shapes, checked in this order:
//
//	{"credentialData": {"credentialPreview": {"attributes": [{name, value}]}}}  -> offer
//	{"credentialPreview": {"attributes": [...]}} (or credential_preview)       -> direct-preview
//	{"credential": {"name": "Alice", ...}}                                      -> simple-kv
//	{"attributes": [{name, value}]}                                             -> attribute-list
//
// Anything else yields an "unknown" record with no attributes. Normalization
// never fails.
package normalizer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"credex/internal/credential/models"
)

type rawAttribute struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

type identifiers struct {
	SchemaID       string `mapstructure:"schemaId"`
	SchemaIDSnake  string `mapstructure:"schema_id"`
	CredDefID      string `mapstructure:"credentialDefinitionId"`
	CredDefIDSnake string `mapstructure:"cred_def_id"`
	CredDefIDLong  string `mapstructure:"credential_definition_id"`
}

func (i identifiers) schema() string {
	return firstNonEmpty(i.SchemaID, i.SchemaIDSnake)
}

func (i identifiers) definition() string {
	return firstNonEmpty(i.CredDefID, i.CredDefIDSnake, i.CredDefIDLong)
}

// Normalize builds a credential record from payload. The returned record has
// no id and status stored; callers assign both as their flow requires.
func Normalize(payload map[string]any, now time.Time) *models.Credential {
	format, attrs := detect(payload)

	cred := &models.Credential{
		OriginalFormat: format,
		Status:         models.StatusStored,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	cred.SetAttributes(attrs)

	ids := decodeIdentifiers(payload)
	if nested, ok := asMap(payload["credentialData"]); ok {
		nestedIDs := decodeIdentifiers(nested)
		cred.SchemaID = firstNonEmpty(ids.schema(), nestedIDs.schema())
		cred.CredentialDefinitionID = firstNonEmpty(ids.definition(), nestedIDs.definition())
	} else {
		cred.SchemaID = ids.schema()
		cred.CredentialDefinitionID = ids.definition()
	}
	return cred
}

func detect(payload map[string]any) (models.Format, []models.Attribute) {
	if payload == nil {
		return models.FormatUnknown, nil
	}
	if data, ok := asMap(payload["credentialData"]); ok {
		if attrs, ok := previewAttributes(data); ok {
			return models.FormatOffer, attrs
		}
	}
	if attrs, ok := previewAttributes(payload); ok {
		return models.FormatDirectPreview, attrs
	}
	if kv, ok := asMap(payload["credential"]); ok {
		return models.FormatSimpleKV, fromKeyValues(kv)
	}
	if list, ok := payload["attributes"].([]any); ok {
		return models.FormatAttributeList, decodeAttributes(list)
	}
	return models.FormatUnknown, nil
}

func previewAttributes(m map[string]any) ([]models.Attribute, bool) {
	for _, key := range []string{"credentialPreview", "credential_preview"} {
		preview, ok := asMap(m[key])
		if !ok {
			continue
		}
		if list, ok := preview["attributes"].([]any); ok {
			return decodeAttributes(list), true
		}
	}
	return nil, false
}

// decodeAttributes decodes each element on its own so one malformed entry
// does not discard the rest.
func decodeAttributes(list []any) []models.Attribute {
	out := make([]models.Attribute, 0, len(list))
	for _, item := range list {
		var raw rawAttribute
		cfg := &mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &raw}
		dec, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			continue
		}
		if err := dec.Decode(item); err != nil {
			continue
		}
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		out = append(out, models.Attribute{Name: name, Value: render(raw.Value)})
	}
	return out
}

// fromKeyValues sorts keys so the output order does not depend on map iteration.
func fromKeyValues(kv map[string]any) []models.Attribute {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]models.Attribute, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.Attribute{Name: strings.TrimSpace(k), Value: render(kv[k])})
	}
	return out
}

func decodeIdentifiers(m map[string]any) identifiers {
	var ids identifiers
	// Mismatched types simply leave the field empty.
	_ = mapstructure.WeakDecode(m, &ids)
	return ids
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
