// Package tasks exposes task creation, listing and execution to callers
// that have already authenticated the owner.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

const (
	MaxNameLength = 200
	ListLimit     = 100
)

var ErrNameTooLong = errors.New("task name too long")

// Executor runs a task to completion. Implemented by execution.Engine.
type Executor interface {
	Execute(ctx context.Context, ownerID, taskID uuid.UUID) (*models.Task, string, error)
}

type Service struct {
	store store.Store
	exec  Executor
	now   func() time.Time
}

func NewService(s store.Store, exec Executor) *Service {
	return &Service{store: s, exec: exec, now: time.Now}
}

// CreateTask stores a Pending task. A blank name becomes "Task".
func (s *Service) CreateTask(ctx context.Context, ownerID uuid.UUID, name string) (*models.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultTaskName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: max %d characters", ErrNameTooLong, MaxNameLength)
	}
	t := &models.Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Status:    models.TaskStatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// ListTasks returns the owner's most recent tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]*models.Task, error) {
	return s.store.ListTasks(ctx, ownerID, ListLimit)
}

func (s *Service) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	return s.store.GetTask(ctx, ownerID, id)
}

func (s *Service) Execute(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, string, error) {
	return s.exec.Execute(ctx, ownerID, id)
}
