package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credex/internal/verification/models"
	"credex/pkg/platform/httputil"
)

// Sessions is the read side of the session manager.
type Sessions interface {
	Get(ctx context.Context, key string) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
}

// Handler serves verification session status to external requesters.
type Handler struct {
	sessions Sessions
	logger   *slog.Logger
}

func New(sessions Sessions, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/verification-sessions", h.HandleList)
	r.Get("/verification-sessions/{id}", h.HandleGet)
}

type ListResponse struct {
	Sessions []*models.Session `json:"sessions"`
	Total    int               `json:"total"`
}

// HandleGet accepts a session id or a correlation id.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list verification sessions", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if status := models.Status(r.URL.Query().Get("status")); status != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Sessions: sessions, Total: len(sessions)})
}
