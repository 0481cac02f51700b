package tasks

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shotaf-bot/shotaf/internal/api"
	"github.com/shotaf-bot/shotaf/internal/auth"
)

// Handler exposes the dashboard's read/delete surface over tasks. Tasks
// are created through the WhatsApp pipeline, not this API.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	list, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("listing tasks", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "id")

	task, err := h.svc.Get(r.Context(), claims.UserID, id)
	if err != nil {
		slog.Error("getting task", "error", err, "task_id", id)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if task == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, task)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), claims.UserID, id); err != nil {
		slog.Error("deleting task", "error", err, "task_id", id)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "task deleted")
}
