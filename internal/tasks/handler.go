package tasks

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/api"
	"github.com/credittasks/backend/internal/middleware"
	"github.com/credittasks/backend/internal/models"
)

type CreateTaskRequest struct {
	Name string `json:"name" validate:"max=200"`
}

type ExecuteResponse struct {
	TaskID           uuid.UUID         `json:"task_id"`
	Status           models.TaskStatus `json:"status"`
	ChargedCost      *int              `json:"charged_cost"`
	ExecutionSeconds *int              `json:"execution_seconds"`
	Message          string            `json:"message"`
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

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		api.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	var req CreateTaskRequest
	if r.ContentLength != 0 {
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondWithError(w, r, http.StatusBadRequest, "Name must be at most 200 characters.")
			return
		}
	}
	task, err := h.svc.CreateTask(r.Context(), ownerID, req.Name)
	if err != nil {
		if errors.Is(err, ErrNameTooLong) {
			api.RespondWithError(w, r, http.StatusBadRequest, "Name must be at most 200 characters.")
			return
		}
		api.HandleError(w, r, h.log, err)
		return
	}
	api.RespondWithJSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		api.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	list, err := h.svc.ListTasks(r.Context(), ownerID)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Task{}
	}
	api.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, r, h.log, err)
		return
	}
	api.RespondWithJSON(w, http.StatusOK, task)
}

// Execute blocks for the task's simulated run time before responding.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	task, msg, err := h.svc.Execute(r.Context(), ownerID, id)
	if err != nil {
		if r.Context().Err() != nil {
			h.log.Info("execute abandoned by client", "task_id", id, "error", err)
			return
		}
		api.HandleError(w, r, h.log, err)
		return
	}
	api.RespondWithJSON(w, http.StatusOK, ExecuteResponse{
		TaskID:           task.ID,
		Status:           task.Status,
		ChargedCost:      task.ChargedCost,
		ExecutionSeconds: task.ExecutionSeconds,
		Message:          msg,
	})
}

func (h *Handler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		api.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized.")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.RespondWithError(w, r, http.StatusNotFound, "Not found.")
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, id, true
}
