package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credex/internal/inbox/models"
	"credex/internal/matcher"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/httputil"
	request "credex/pkg/platform/middleware/request"
)

// Service defines the inbox operations exposed over HTTP.
type Service interface {
	HandleMessage(ctx context.Context, msg models.Message) (*models.Notification, error)
	RequestVerification(ctx context.Context, req models.VerificationRequest) (*models.Notification, error)
	List(ctx context.Context, status models.Status) ([]*models.Notification, error)
	Get(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)
	Delete(ctx context.Context, notificationID id.NotificationID) error
	Decide(ctx context.Context, d models.Decision) (*models.DecisionResult, error)
	CheckAvailability(ctx context.Context, notificationID id.NotificationID) (*matcher.Availability, error)
}

// Handler serves the protocol endpoint, the requester entrypoint and the
// holder's notification inbox.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an inbox Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the inbox routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/didcomm", h.HandleMessage)
	r.Post("/verification-requests", h.HandleVerificationRequest)
	r.Get("/notifications", h.HandleList)
	r.Get("/notifications/{id}", h.HandleGet)
	r.Delete("/notifications/{id}", h.HandleDelete)
	r.Post("/notifications/{id}/decision", h.HandleDecision)
	r.Get("/notifications/{id}/availability", h.HandleAvailability)
}

// HandleMessage accepts one inbound protocol message. Connection requests are
// answered with the connection response; every other kind returns the
// notification it produced.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, ok := httputil.DecodeJSON[map[string]any](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if *body == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "message must be a JSON object"))
		return
	}

	n, err := h.service.HandleMessage(ctx, models.ParseMessage(*body))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to handle protocol message",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if n.Type == models.TypeConnection && n.Reply != nil {
		httputil.WriteJSON(w, http.StatusOK, n.Reply)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, n)
}

// HandleVerificationRequest opens a verification session for an external
// requester and queues the proof request for the holder.
func (h *Handler) HandleVerificationRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.RequestVerification(ctx, req.toModel())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open verification request",
			"request_id", requestID,
			"requester", req.Requester.ExternalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, VerificationResponse{
		NotificationID:      n.ID,
		SessionID:           n.ProofRequest.SessionID,
		CorrelationID:       n.ProofRequest.CorrelationID,
		RequestedAttributes: n.ProofRequest.RequestedAttributes,
		Status:              "pending",
	})
}

// HandleList lists pending notifications, or every notification when
// status=all. Other values filter by that status.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.StatusPending
	switch raw := r.URL.Query().Get("status"); raw {
	case "":
	case "all":
		status = ""
	default:
		status = models.Status(raw)
		if !status.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status filter"))
			return
		}
	}

	list, err := h.service.List(ctx, status)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notifications",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Notifications: list, Total: len(list)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	n, err := h.service.Get(r.Context(), notificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), notificationID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{ID: notificationID, Deleted: true})
}

// HandleDecision applies the holder's accept or decline. Repeating a decision
// returns the stored result.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Decide(ctx, req.toModel(notificationID))
	if err != nil {
		h.logger.WarnContext(ctx, "decision rejected",
			"request_id", requestID,
			"notification_id", notificationID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	avail, err := h.service.CheckAvailability(r.Context(), notificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, avail)
}
