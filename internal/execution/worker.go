package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/credittasks/backend/internal/store"
)

// FinalizeTaskArgs is the River job that finalizes a task if the request
// that started it never did.
type FinalizeTaskArgs struct {
	TaskID  uuid.UUID `json:"task_id"`
	OwnerID uuid.UUID `json:"owner_id"`
}

func (FinalizeTaskArgs) Kind() string { return "finalize_task" }

// DueFinalizer defines the contract the worker needs to finish a task.
type DueFinalizer interface {
	FinalizeDue(ctx context.Context, ownerID, taskID uuid.UUID) (time.Duration, error)
}

type FinalizeTaskWorker struct {
	river.WorkerDefaults[FinalizeTaskArgs]
	finalizer DueFinalizer
}

func NewFinalizeTaskWorker(f DueFinalizer) *FinalizeTaskWorker {
	return &FinalizeTaskWorker{finalizer: f}
}

func (w *FinalizeTaskWorker) Work(ctx context.Context, job *river.Job[FinalizeTaskArgs]) error {
	args := job.Args
	wait, err := w.finalizer.FinalizeDue(ctx, args.OwnerID, args.TaskID)
	if err != nil {
		err = fmt.Errorf("finalize task %s: %w", args.TaskID, err)
		// A deleted task or one missing its start data can never finalize.
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, ErrInvariantViolation) {
			return river.JobCancel(err)
		}
		return err
	}
	if wait > 0 {
		return river.JobSnooze(wait)
	}
	return nil
}

// InsertFinalizeTxFunc inserts a finalize job inside an open pgx transaction.
type InsertFinalizeTxFunc func(ctx context.Context, tx pgx.Tx, args FinalizeTaskArgs, opts *river.InsertOpts) error

// RiverScheduler schedules finalize jobs in the same transaction as the
// charge. Transactions that are not backed by pgx are skipped.
type RiverScheduler struct {
	insert InsertFinalizeTxFunc
}

func NewRiverScheduler(insert InsertFinalizeTxFunc) *RiverScheduler {
	return &RiverScheduler{insert: insert}
}

type pgxTxProvider interface {
	PgxTx() pgx.Tx
}

func (s *RiverScheduler) ScheduleFinalize(ctx context.Context, tx store.Tx, args FinalizeTaskArgs, at time.Time) error {
	p, ok := tx.(pgxTxProvider)
	if !ok {
		return nil
	}
	return s.insert(ctx, p.PgxTx(), args, &river.InsertOpts{ScheduledAt: at})
}
