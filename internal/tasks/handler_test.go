package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credittasks/backend/internal/middleware"
	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

func withUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), id))
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandler_CreateAndGet(t *testing.T) {
	svc, acc := newService(t, nil)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.CreateTask(rec, withUser(httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"name":"report"}`)), acc.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "report", created.Name)
	assert.Equal(t, models.TaskStatusPending, created.Status)

	rec = httptest.NewRecorder()
	h.GetTask(rec, withID(withUser(httptest.NewRequest(http.MethodGet, "/tasks/x", nil), acc.ID), created.ID.String()))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetTask(rec, withID(withUser(httptest.NewRequest(http.MethodGet, "/tasks/x", nil), uuid.New()), created.ID.String()))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.GetTask(rec, withID(withUser(httptest.NewRequest(http.MethodGet, "/tasks/x", nil), acc.ID), "not-a-uuid"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateRejectsLongName(t *testing.T) {
	svc, acc := newService(t, nil)
	h := NewHandler(svc, nil)

	body := `{"name":"` + strings.Repeat("x", 201) + `"}`
	rec := httptest.NewRecorder()
	h.CreateTask(rec, withUser(httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body)), acc.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListEmpty(t *testing.T) {
	svc, acc := newService(t, nil)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.ListTasks(rec, withUser(httptest.NewRequest(http.MethodGet, "/tasks", nil), acc.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_ExecuteResponse(t *testing.T) {
	cost, secs := 12, 20
	task := &models.Task{ID: uuid.New(), Status: models.TaskStatusSucceeded, ChargedCost: &cost, ExecutionSeconds: &secs}
	svc, acc := newService(t, &fakeExecutor{task: task, msg: "Succeeded."})
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Execute(rec, withID(withUser(httptest.NewRequest(http.MethodPost, "/tasks/x/execute", nil), acc.ID), task.ID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"task_id":"`+task.ID.String()+`","status":"Succeeded","charged_cost":12,"execution_seconds":20,"message":"Succeeded."}`, rec.Body.String())
}

func TestHandler_ExecuteContention(t *testing.T) {
	svc, acc := newService(t, &fakeExecutor{err: store.ErrContention})
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Execute(rec, withID(withUser(httptest.NewRequest(http.MethodPost, "/tasks/x/execute", nil), acc.ID), uuid.NewString()))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too much contention. Retry.")
}

func TestHandler_Unauthenticated(t *testing.T) {
	svc, _ := newService(t, nil)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.ListTasks(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
