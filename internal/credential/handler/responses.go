package handler

import (
	"credex/internal/credential/models"
	id "credex/pkg/domain"
)

type ListResponse struct {
	Credentials []*models.Credential `json:"credentials"`
	Total       int                  `json:"total"`
}

type DeleteResponse struct {
	ID      id.CredentialID `json:"id"`
	Removed bool            `json:"removed"`
}
