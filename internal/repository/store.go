// Package repository is the Postgres implementation of store.Store on pgx.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool     *pgxpool.Pool
	accounts *AccountRepo
	tasks    *TaskRepo
	credits  *CreditRepo
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		accounts: &AccountRepo{},
		tasks:    &TaskRepo{},
		credits:  &CreditRepo{},
	}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, accounts: s.accounts, tasks: s.tasks, credits: s.credits}, nil
}

// CreateAccount inserts the account and its signup ledger entry atomically.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account, signup *models.CreditEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.accounts.Create(ctx, tx, a); err != nil {
		return err
	}
	if signup != nil {
		signup.AccountID = a.ID
		if err := s.credits.Create(ctx, tx, signup); err != nil {
			return err
		}
	}
	return mapError(tx.Commit(ctx), "account")
}

func (s *Store) GetAccountByLogin(ctx context.Context, emailOrUsername string) (*models.Account, error) {
	return s.accounts.GetByLogin(ctx, s.pool, emailOrUsername)
}

// DeleteAccount removes the account; tasks and ledger rows cascade.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.accounts.Delete(ctx, s.pool, id)
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	return s.tasks.Create(ctx, s.pool, t)
}

func (s *Store) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	return s.tasks.GetByID(ctx, s.pool, ownerID, id)
}

func (s *Store) ListTasks(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Task, error) {
	return s.tasks.ListByOwner(ctx, s.pool, ownerID, limit)
}

func (s *Store) ListCreditEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	return s.credits.ListByAccountID(ctx, s.pool, accountID, limit)
}

func (s *Store) ListOverdueRunning(ctx context.Context, cutoff time.Time, limit int) ([]*models.Task, error) {
	return s.tasks.ListOverdueRunning(ctx, s.pool, cutoff, limit)
}
