package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

func seedAccount(t *testing.T, s *Store, email, username string) *models.Account {
	t.Helper()
	acc := &models.Account{
		Email:        email,
		Username:     username,
		Credits:      500,
		RegisteredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acc, nil))
	return acc
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s := New()
	seedAccount(t, s, "a@example.com", "alice")

	err := s.CreateAccount(context.Background(), &models.Account{Email: "A@example.com", Username: "other"}, nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = s.CreateAccount(context.Background(), &models.Account{Email: "b@example.com", Username: "ALICE"}, nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGetAccountByLogin(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "a@example.com", "Alice")

	got, err := s.GetAccountByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	got, err = s.GetAccountByLogin(context.Background(), " A@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	_, err = s.GetAccountByLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTx_CommitAdvancesVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := seedAccount(t, s, "a@example.com", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	loaded, err := tx.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	loaded.Credits = 400
	require.NoError(t, tx.SaveAccount(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)
	require.NoError(t, tx.AppendCreditEntry(ctx, &models.CreditEntry{ID: uuid.New(), AccountID: acc.ID, Amount: -100}))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	again, err := tx2.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 400, again.Credits)
	assert.Equal(t, int64(2), again.Version)

	entries, err := s.ListCreditEntries(ctx, acc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTx_StaleSaveConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := seedAccount(t, s, "a@example.com", "alice")

	tx1, _ := s.Begin(ctx)
	tx2, _ := s.Begin(ctx)
	a1, err := tx1.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	a2, err := tx2.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)

	a1.Credits = 1
	require.NoError(t, tx1.SaveAccount(ctx, a1))
	a2.Credits = 2
	require.NoError(t, tx2.SaveAccount(ctx, a2))

	require.NoError(t, tx1.Commit(ctx))
	assert.ErrorIs(t, tx2.Commit(ctx), store.ErrConcurrencyConflict)

	tx3, _ := s.Begin(ctx)
	a3, err := tx3.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a3.Credits)

	stale := *a2
	stale.Version = 1
	assert.ErrorIs(t, tx3.SaveAccount(ctx, &stale), store.ErrConcurrencyConflict)
}

func TestTx_RollbackDiscards(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := seedAccount(t, s, "a@example.com", "alice")

	tx, _ := s.Begin(ctx)
	loaded, _ := tx.LoadAccount(ctx, acc.ID)
	loaded.Credits = 0
	require.NoError(t, tx.SaveAccount(ctx, loaded))
	require.NoError(t, tx.Rollback(ctx))

	tx2, _ := s.Begin(ctx)
	again, err := tx2.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, again.Credits)
	assert.Equal(t, int64(1), again.Version)
}

func TestTasks_OwnershipAndOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "a@example.com", "alice")
	other := seedAccount(t, s, "b@example.com", "bob")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		task := &models.Task{OwnerID: owner.ID, Name: "Task", Status: models.TaskStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateTask(ctx, task))
		ids = append(ids, task.ID)
	}

	list, err := s.ListTasks(ctx, owner.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)

	_, err = s.GetTask(ctx, other.ID, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)

	tx, _ := s.Begin(ctx)
	_, err = tx.LoadTask(ctx, other.ID, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListOverdueRunning(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "a@example.com", "alice")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	secs := 10

	running := &models.Task{OwnerID: owner.ID, Status: models.TaskStatusRunning, StartedAt: &start, ExecutionSeconds: &secs, CreatedAt: start}
	pending := &models.Task{OwnerID: owner.ID, Status: models.TaskStatusPending, CreatedAt: start}
	require.NoError(t, s.CreateTask(ctx, running))
	require.NoError(t, s.CreateTask(ctx, pending))

	list, err := s.ListOverdueRunning(ctx, start.Add(5*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListOverdueRunning(ctx, start.Add(11*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, running.ID, list[0].ID)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "a@example.com", "alice")
	task := &models.Task{OwnerID: owner.ID, Status: models.TaskStatusPending}
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.DeleteAccount(ctx, owner.ID))
	_, err := s.GetTask(ctx, owner.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
