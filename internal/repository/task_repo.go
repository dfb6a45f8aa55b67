package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

type TaskRepo struct{}

const taskColumns = `id, owner_id, name, status, charged_cost, execution_seconds, created_at, started_at, completed_at, outcome_seed, version`

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t    models.Task
		seed *int64
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Status, &t.ChargedCost, &t.ExecutionSeconds,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt, &seed, &t.Version)
	if err != nil {
		return nil, err
	}
	if seed != nil {
		v := uint64(*seed)
		t.OutcomeSeed = &v
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// seedParam stores the unsigned seed in a BIGINT column bit-for-bit.
func seedParam(seed *uint64) *int64 {
	if seed == nil {
		return nil
	}
	v := int64(*seed)
	return &v
}

func (r *TaskRepo) Create(ctx context.Context, q querier, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO tasks (id, owner_id, name, status, charged_cost, execution_seconds, created_at, started_at, completed_at, outcome_seed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version
	`, t.ID, t.OwnerID, t.Name, t.Status, t.ChargedCost, t.ExecutionSeconds, t.CreatedAt, t.StartedAt, t.CompletedAt, seedParam(t.OutcomeSeed)).Scan(&t.Version)
	return mapError(err, "task")
}

func (r *TaskRepo) GetByID(ctx context.Context, q querier, ownerID, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, mapError(err, "task")
	}
	return t, nil
}

func (r *TaskRepo) ListByOwner(ctx context.Context, q querier, ownerID uuid.UUID, limit int) ([]*models.Task, error) {
	rows, err := q.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, mapError(err, "task")
	}
	list, err := scanTasks(rows)
	return list, mapError(err, "task")
}

// ListOverdueRunning returns Running tasks whose simulated execution ended before cutoff.
func (r *TaskRepo) ListOverdueRunning(ctx context.Context, q querier, cutoff time.Time, limit int) ([]*models.Task, error) {
	rows, err := q.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = $1
		  AND started_at + make_interval(secs => execution_seconds) < $2
		ORDER BY started_at
		LIMIT $3
	`, models.TaskStatusRunning, cutoff, limit)
	if err != nil {
		return nil, mapError(err, "task")
	}
	list, err := scanTasks(rows)
	return list, mapError(err, "task")
}

// Update is a versioned write; a moved version yields ErrConcurrencyConflict.
func (r *TaskRepo) Update(ctx context.Context, q querier, t *models.Task) error {
	err := q.QueryRow(ctx, `
		UPDATE tasks
		SET status = $3, charged_cost = $4, execution_seconds = $5, started_at = $6, completed_at = $7,
		    outcome_seed = $8, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`, t.ID, t.Version, t.Status, t.ChargedCost, t.ExecutionSeconds, t.StartedAt, t.CompletedAt, seedParam(t.OutcomeSeed)).Scan(&t.Version)
	if err == pgx.ErrNoRows {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return mapError(err, "task")
		}
		if !exists {
			return fmt.Errorf("%w: task", store.ErrNotFound)
		}
		return store.ErrConcurrencyConflict
	}
	return mapError(err, "task")
}
