package usermemory

import (
	"log/slog"
	"net/http"

	"github.com/shotaf-bot/shotaf/internal/api"
	"github.com/shotaf-bot/shotaf/internal/auth"
)

// Handler exposes the user's memory document to the dashboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	mem, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("getting memory", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, mem)
}
