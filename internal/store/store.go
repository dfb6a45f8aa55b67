// Package store defines the persistence contract used by the credit and task
// core, and the optimistic retry harness every mutating operation runs under.
//
// Writes are compare-and-swap: SaveAccount and SaveTask carry the version the
// caller read, and fail with ErrConcurrencyConflict when the stored version has
// moved on. Implementations advance the version on success.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/models"
)

var (
	// ErrNotFound is returned when an entity is absent or not owned by the caller.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique field (email, username) is taken.
	ErrDuplicate = errors.New("entity already exists")

	// ErrConcurrencyConflict means the version read by the caller is stale.
	// It is transient and retried by Retrier; it should never reach a client.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrContention is returned once the retry bound is exhausted by conflicts.
	ErrContention = errors.New("too much contention")
)

// Tx is one transactional scope. Every read re-reads from the store.
type Tx interface {
	LoadAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	LoadTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	SaveAccount(ctx context.Context, a *models.Account) error
	SaveTask(ctx context.Context, t *models.Task) error
	AppendCreditEntry(ctx context.Context, e *models.CreditEntry) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens transactional scopes.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store is the full storage collaborator: transactional scopes plus the
// simple inserts and reads that do not need optimistic retries.
type Store interface {
	Beginner

	CreateAccount(ctx context.Context, a *models.Account, signup *models.CreditEntry) error
	GetAccountByLogin(ctx context.Context, emailOrUsername string) (*models.Account, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Task, error)

	ListCreditEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditEntry, error)

	// ListOverdueRunning returns Running tasks expected to have finished before cutoff.
	ListOverdueRunning(ctx context.Context, cutoff time.Time, limit int) ([]*models.Task, error)
}
