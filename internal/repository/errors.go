package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/credittasks/backend/internal/store"
)

const (
	uniqueViolation      = "23505"
	foreignKeyViolation  = "23503"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// mapError translates pgx errors into store sentinels so callers never
// depend on driver types.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s (%s)", store.ErrDuplicate, entity, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %s references a missing row", store.ErrNotFound, entity)
		case serializationFailure, deadlockDetected:
			return fmt.Errorf("%w: %s", store.ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}
