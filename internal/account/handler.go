package account

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/api"
	"github.com/credittasks/backend/internal/middleware"
	"github.com/credittasks/backend/internal/models"
)

type MeResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Credits         int        `json:"credits"`
	RegisteredAt    time.Time  `json:"registered_at"`
	LastAutoGrantAt *time.Time `json:"last_auto_grant_at"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// GET /me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		api.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	acc, err := h.svc.GetMe(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	api.RespondWithJSON(w, http.StatusOK, MeResponse{
		ID:              acc.ID,
		Email:           acc.Email,
		Username:        acc.Username,
		Credits:         acc.Credits,
		RegisteredAt:    acc.RegisteredAt,
		LastAutoGrantAt: acc.LastAutoGrantAt,
	})
}

// GET /me/ledger
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		api.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	entries, err := h.svc.ListLedger(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	if entries == nil {
		entries = []*models.CreditEntry{}
	}
	api.RespondWithJSON(w, http.StatusOK, entries)
}
