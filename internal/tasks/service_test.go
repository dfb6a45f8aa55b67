package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
	"github.com/credittasks/backend/internal/store/memstore"
)

type fakeExecutor struct {
	task *models.Task
	msg  string
	err  error
}

func (f *fakeExecutor) Execute(_ context.Context, ownerID, taskID uuid.UUID) (*models.Task, string, error) {
	return f.task, f.msg, f.err
}

func newService(t *testing.T, exec Executor) (*Service, *models.Account) {
	t.Helper()
	s := memstore.New()
	acc := &models.Account{Email: "a@example.com", Username: "alice", Credits: 500, RegisteredAt: time.Now()}
	require.NoError(t, s.CreateAccount(context.Background(), acc, nil))
	return NewService(s, exec), acc
}

func TestCreateTask_DefaultsName(t *testing.T) {
	svc, acc := newService(t, nil)

	task, err := svc.CreateTask(context.Background(), acc.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTaskName, task.Name)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Nil(t, task.ChargedCost)
	assert.Nil(t, task.StartedAt)

	task, err = svc.CreateTask(context.Background(), acc.ID, "  build report ")
	require.NoError(t, err)
	assert.Equal(t, "build report", task.Name)
}

func TestCreateTask_NameTooLong(t *testing.T) {
	svc, acc := newService(t, nil)

	_, err := svc.CreateTask(context.Background(), acc.ID, strings.Repeat("é", MaxNameLength))
	require.NoError(t, err)

	_, err = svc.CreateTask(context.Background(), acc.ID, strings.Repeat("x", MaxNameLength+1))
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestListTasks_NewestFirstCapped(t *testing.T) {
	svc, acc := newService(t, nil)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var last *models.Task
	for i := 0; i < ListLimit+5; i++ {
		task, err := svc.CreateTask(context.Background(), acc.ID, "")
		require.NoError(t, err)
		last = task
	}

	list, err := svc.ListTasks(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Len(t, list, ListLimit)
	assert.Equal(t, last.ID, list[0].ID)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt))
	}
}

func TestGetTask_ForeignOwnerNotFound(t *testing.T) {
	svc, acc := newService(t, nil)
	task, err := svc.CreateTask(context.Background(), acc.ID, "mine")
	require.NoError(t, err)

	_, err = svc.GetTask(context.Background(), uuid.New(), task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := svc.GetTask(context.Background(), acc.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Name)
}
