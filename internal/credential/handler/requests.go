package handler

import (
	"encoding/json"
	"net/url"
	"strconv"

	"credex/internal/credential/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/validation"
)

// CreateRequest wraps an arbitrary credential payload. The optional "id" and
// "status" keys are lifted out; everything else goes to the normalizer.
type CreateRequest struct {
	ID      id.CredentialID `json:"-"`
	Status  string          `json:"-" validate:"omitempty,oneof=stored offer-received done declined"`
	Payload map[string]any  `json:"-" validate:"required"`
}

func (r *CreateRequest) UnmarshalJSON(data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if raw, ok := payload["id"].(string); ok {
		r.ID = id.CredentialID(raw)
		delete(payload, "id")
	}
	if raw, ok := payload["status"].(string); ok {
		r.Status = raw
		delete(payload, "status")
	}
	r.Payload = payload
	return nil
}

// Normalize trims a caller-supplied id; an empty id lets the store assign one.
func (r *CreateRequest) Normalize() {
	if r == nil || r.ID == "" {
		return
	}
	if parsed, err := id.ParseCredentialID(string(r.ID)); err == nil {
		r.ID = parsed
	}
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.ID) > 200 {
		return dErrors.New(dErrors.CodeValidation, "id must be at most 200 characters")
	}
	return validation.Validate(r)
}

func parseFilter(q url.Values) (models.Filter, error) {
	filter := models.Filter{
		Status: models.Status(q.Get("status")),
		Format: models.Format(q.Get("format")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, dErrors.New(dErrors.CodeBadRequest, "invalid status filter")
	}
	for key, dst := range map[string]*bool{
		"excludeDeclined": &filter.ExcludeDeclined,
		"excludeRevoked":  &filter.ExcludeRevoked,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid "+key+" filter")
		}
		*dst = v
	}
	return filter, nil
}
