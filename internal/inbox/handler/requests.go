package handler

import (
	"strings"

	"credex/internal/inbox/models"
	vmodels "credex/internal/verification/models"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/validation"
	pkgvalidation "credex/pkg/validation"
)

// VerificationRequest is the external requester's proof request.
type VerificationRequest struct {
	Requester           RequesterRequest `json:"requester" validate:"required"`
	RequestedAttributes []string         `json:"requestedAttributes"`
	CorrelationID       string           `json:"correlationId"`
}

type RequesterRequest struct {
	ExternalID  string `json:"externalId" validate:"required,notblank"`
	DisplayName string `json:"displayName"`
	CallbackURL string `json:"callbackUrl" validate:"omitempty,url"`
}

func (r *VerificationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Requester.ExternalID = strings.TrimSpace(r.Requester.ExternalID)
	r.Requester.DisplayName = strings.TrimSpace(r.Requester.DisplayName)
	r.Requester.CallbackURL = strings.TrimSpace(r.Requester.CallbackURL)
	r.CorrelationID = strings.TrimSpace(r.CorrelationID)
}

func (r *VerificationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	// Phase 1: size limits (fail fast on oversized input)
	if err := validation.CheckSliceCount("requested attributes", len(r.RequestedAttributes), validation.MaxRequestedAttributes); err != nil {
		return err
	}
	if err := validation.CheckEachStringLength("requested attribute", r.RequestedAttributes, validation.MaxAttributeNameLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("externalId", r.Requester.ExternalID, validation.MaxRequesterIDLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("callbackUrl", r.Requester.CallbackURL, validation.MaxCallbackURLLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("correlationId", r.CorrelationID, validation.MaxCorrelationIDLength); err != nil {
		return err
	}
	// Phase 2: required fields and formats
	return pkgvalidation.Validate(r)
}

func (r *VerificationRequest) toModel() models.VerificationRequest {
	return models.VerificationRequest{
		Requester: vmodels.Requester{
			ExternalID:  r.Requester.ExternalID,
			DisplayName: r.Requester.DisplayName,
			CallbackURL: r.Requester.CallbackURL,
		},
		RequestedAttributes: r.RequestedAttributes,
		CorrelationID:       r.CorrelationID,
	}
}

// DecisionRequest is the holder's answer to a notification.
type DecisionRequest struct {
	Action       string `json:"action" validate:"required,oneof=accept decline"`
	CredentialID string `json:"credentialId"`
}

func (r *DecisionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.CredentialID = strings.TrimSpace(r.CredentialID)
}

func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return pkgvalidation.Validate(r)
}

func (r *DecisionRequest) toModel(notificationID id.NotificationID) models.Decision {
	return models.Decision{
		NotificationID: notificationID,
		Action:         models.Action(r.Action),
		CredentialID:   id.CredentialID(r.CredentialID),
	}
}
