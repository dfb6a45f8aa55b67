package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

type AccountRepo struct{}

const accountColumns = `id, email, username, password_hash, credits, registered_at, last_auto_grant_at, version`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.Credits, &a.RegisteredAt, &a.LastAutoGrantAt, &a.Version)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, q querier, a *models.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO accounts (id, email, username, password_hash, credits, registered_at, last_auto_grant_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version
	`, a.ID, a.Email, a.Username, a.PasswordHash, a.Credits, a.RegisteredAt, a.LastAutoGrantAt).Scan(&a.Version)
	return mapError(err, "account")
}

func (r *AccountRepo) GetByID(ctx context.Context, q querier, id uuid.UUID) (*models.Account, error) {
	a, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "account")
	}
	return a, nil
}

// GetByLogin matches the lowercased email or the username case-insensitively.
func (r *AccountRepo) GetByLogin(ctx context.Context, q querier, emailOrUsername string) (*models.Account, error) {
	key := strings.ToLower(strings.TrimSpace(emailOrUsername))
	a, err := scanAccount(q.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE email = $1 OR lower(username) = $1
		LIMIT 1
	`, key))
	if err != nil {
		return nil, mapError(err, "account")
	}
	return a, nil
}

// Update writes a only if the stored version still equals a.Version, then
// advances a.Version.
func (r *AccountRepo) Update(ctx context.Context, q querier, a *models.Account) error {
	err := q.QueryRow(ctx, `
		UPDATE accounts
		SET credits = $3, last_auto_grant_at = $4, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`, a.ID, a.Version, a.Credits, a.LastAutoGrantAt).Scan(&a.Version)
	if err == pgx.ErrNoRows {
		return r.conflictOrMissing(ctx, q, a.ID)
	}
	return mapError(err, "account")
}

func (r *AccountRepo) Delete(ctx context.Context, q querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return mapError(err, "account")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", store.ErrNotFound)
	}
	return nil
}

func (r *AccountRepo) conflictOrMissing(ctx context.Context, q querier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapError(err, "account")
	}
	if !exists {
		return fmt.Errorf("%w: account", store.ErrNotFound)
	}
	return store.ErrConcurrencyConflict
}
