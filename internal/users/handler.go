package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/shotaf-bot/shotaf/internal/api"
	"github.com/shotaf-bot/shotaf/internal/auth"
)

// Handler exposes the dashboard's channel settings.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

type ChannelRequest struct {
	InstanceID string `json:"instance_id" validate:"required"`
	Token      string `json:"token" validate:"required"`
}

// UpdateChannel links the user's own Green API instance. Reminders and
// replies to this user go out through it instead of the shared bot
// instance; the token is stored encrypted.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.svc.SetChannelCredentials(r.Context(), claims.UserID, req.InstanceID, req.Token); err != nil {
		slog.Error("setting channel credentials", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "channel updated")
}
