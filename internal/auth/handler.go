package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/credittasks/backend/internal/api"
)

// Request/response structs use snake_case JSON.

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondWithError(w, r, http.StatusBadRequest, "email, username and a password of at least 8 characters are required")
		return
	}
	acc, tok, err := h.svc.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	h.log.Info("account registered", "user_id", acc.ID)
	api.RespondWithJSON(w, http.StatusCreated, tokenResponse(acc.ID.String(), tok))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondWithError(w, r, http.StatusBadRequest, "missing required fields")
		return
	}
	acc, tok, err := h.svc.Login(r.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	api.RespondWithJSON(w, http.StatusOK, tokenResponse(acc.ID.String(), tok))
}

func tokenResponse(userID string, tok *Token) TokenResponse {
	return TokenResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt.Format(time.RFC3339),
		UserID:    userID,
	}
}
