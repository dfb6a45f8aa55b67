package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/credittasks/backend/internal/models"
)

// Tx wraps a pgx transaction as a store.Tx.
type Tx struct {
	tx       pgx.Tx
	accounts *AccountRepo
	tasks    *TaskRepo
	credits  *CreditRepo
}

// PgxTx exposes the underlying transaction so River jobs can be inserted
// atomically with the rows written here.
func (t *Tx) PgxTx() pgx.Tx { return t.tx }

func (t *Tx) LoadAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return t.accounts.GetByID(ctx, t.tx, id)
}

func (t *Tx) LoadTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	return t.tasks.GetByID(ctx, t.tx, ownerID, id)
}

func (t *Tx) SaveAccount(ctx context.Context, a *models.Account) error {
	return t.accounts.Update(ctx, t.tx, a)
}

func (t *Tx) SaveTask(ctx context.Context, task *models.Task) error {
	return t.tasks.Update(ctx, t.tx, task)
}

func (t *Tx) AppendCreditEntry(ctx context.Context, e *models.CreditEntry) error {
	return t.credits.Create(ctx, t.tx, e)
}

func (t *Tx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx), "commit")
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == pgx.ErrTxClosed {
		return nil
	}
	return err
}
