// Package api holds the request and response helpers shared by the HTTP
// handlers, including the mapping from domain errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/credittasks/backend/internal/auth/autherr"
	"github.com/credittasks/backend/internal/store"
)

var validate = validator.New()

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// DecodeJSON decodes the request body into v and validates its struct tags.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func RespondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, status, ErrorResponse{
		Error:   message,
		TraceID: middleware.GetReqID(r.Context()),
	})
}

// MapErrorToStatusCode returns the HTTP status for a domain error.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrContention), errors.Is(err, store.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, autherr.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, autherr.ErrInvalidCredentials), errors.Is(err, autherr.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, autherr.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorMessage(err error, status int) string {
	switch {
	case errors.Is(err, store.ErrContention), errors.Is(err, store.ErrConcurrencyConflict):
		return "Too much contention. Retry."
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, autherr.ErrDuplicateAccount):
		return "Email or username already registered."
	case status == http.StatusNotFound:
		return "Not found."
	case status == http.StatusUnauthorized:
		return "Unauthorized."
	case status == http.StatusBadRequest:
		return "Invalid request."
	}
	return "Internal server error."
}

// HandleError logs err and writes the mapped status with a generic message.
// Internal details never reach the client.
func HandleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := MapErrorToStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	} else {
		log.Debug("request rejected", "error", err, "status", status, "path", r.URL.Path)
	}
	RespondWithError(w, r, status, errorMessage(err, status))
}
