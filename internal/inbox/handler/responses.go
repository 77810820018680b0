package handler

import (
	"credex/internal/inbox/models"
	id "credex/pkg/domain"
)

type ListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

type DeleteResponse struct {
	ID      id.NotificationID `json:"id"`
	Deleted bool              `json:"deleted"`
}

// VerificationResponse tells the requester where to poll.
type VerificationResponse struct {
	NotificationID      id.NotificationID `json:"notificationId"`
	SessionID           id.SessionID      `json:"sessionId"`
	CorrelationID       string            `json:"correlationId,omitempty"`
	RequestedAttributes []string          `json:"requestedAttributes"`
	Status              string            `json:"status"`
}
