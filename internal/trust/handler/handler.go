package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credex/internal/trust/models"
	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/httputil"
	"credex/pkg/platform/middleware/admin"
	request "credex/pkg/platform/middleware/request"
	"credex/pkg/validation"
)

// Registry is the subset of the trust registry the admin surface needs.
type Registry interface {
	List(ctx context.Context) ([]models.TrustedIssuer, error)
	Add(ctx context.Context, did, name, addedBy string) (*models.TrustedIssuer, error)
	Remove(ctx context.Context, did string) error
}

// Handler serves the trusted-issuer admin endpoints. Callers mount it behind
// admin.RequireAdminToken.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

func New(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/trusted-issuers", h.HandleList)
	r.Post("/admin/trusted-issuers", h.HandleAdd)
	r.Delete("/admin/trusted-issuers/{did}", h.HandleRemove)
}

type AddRequest struct {
	DID  string `json:"did" validate:"required,notblank,did"`
	Name string `json:"name" validate:"max=200"`
}

func (r *AddRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type ListResponse struct {
	Issuers []models.TrustedIssuer `json:"data"`
	Total   int                    `json:"total"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	issuers, err := h.registry.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Issuers: issuers, Total: len(issuers)})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issuer, err := h.registry.Add(ctx, req.DID, req.Name, admin.GetAdminActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to add trusted issuer",
			"request_id", requestID,
			"did", req.DID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issuer)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did := chi.URLParam(r, "did")
	if err := h.registry.Remove(ctx, did); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "trusted issuer removed via admin api",
		"request_id", request.GetRequestID(ctx),
		"did", did,
		"actor", admin.GetAdminActorID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}
