package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credex/internal/credential/models"
	"credex/internal/credential/normalizer"
	id "credex/pkg/domain"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/httputil"
	request "credex/pkg/platform/middleware/request"
)

// Service defines the credential store operations exposed over HTTP.
type Service interface {
	Add(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Credential, error)
	FindByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
	Remove(ctx context.Context, credID id.CredentialID) (bool, error)
	MarkRevoked(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
}

// Handler serves the holder's credential collection.
type Handler struct {
	service Service
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a credential Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, now: time.Now}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleCreate)
	r.Get("/credentials", h.HandleList)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Delete("/credentials/{id}", h.HandleDelete)
	r.Post("/credentials/{id}/revoke", h.HandleRevoke)
}

// HandleCreate accepts a credential in any supported wire shape, normalizes it
// and stores it. A payload that yields no attributes is rejected.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred := normalizer.Normalize(req.Payload, h.now())
	if len(cred.Attributes) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
			"credential must carry at least one named attribute"))
		return
	}
	cred.ID = req.ID
	if req.Status != "" {
		cred.Status = models.Status(req.Status)
	}

	stored, err := h.service.Add(ctx, cred)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to store credential",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, stored)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	creds, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Credentials: creds, Total: len(creds)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.service.FindByID(r.Context(), credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

// HandleDelete removes a credential. Removing an absent id is not an error.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	removed, err := h.service.Remove(ctx, credID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to remove credential",
			"request_id", request.GetRequestID(ctx),
			"credential_id", credID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{ID: credID, Removed: removed})
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.service.MarkRevoked(ctx, credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "credential revoked",
		"request_id", request.GetRequestID(ctx),
		"credential_id", credID,
	)
	httputil.WriteJSON(w, http.StatusOK, cred)
}
