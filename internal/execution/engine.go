// Package execution runs tasks: it charges credits and starts the task in one
// optimistic transaction, waits out the simulated run with no transaction
// open, and finalizes the outcome in a separate idempotent transaction.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/ledger"
	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

const (
	MsgRejected        = "Rejected: insufficient credits."
	MsgSucceeded       = "Succeeded."
	MsgFailed          = "Failed after consuming credits."
	MsgFinalizePending = "Finalization pending; retry later."

	defaultFinalizeGrace = 30 * time.Second
	defaultRecoverBatch  = 100
)

// ErrInvariantViolation marks a state the engine should never observe, such
// as a failed deduction after the balance check passed.
var ErrInvariantViolation = errors.New("invariant violation")

// Scheduler arranges a later finalization of a task that was just started.
// It is called inside the charge transaction.
type Scheduler interface {
	ScheduleFinalize(ctx context.Context, tx store.Tx, args FinalizeTaskArgs, at time.Time) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Engine struct {
	store     store.Store
	retrier   *store.Retrier
	rnd       Randomizer
	scheduler Scheduler
	now       func() time.Time
	sleep     SleepFunc
	grace     time.Duration
	log       *slog.Logger
}

type Option func(*Engine)

func WithRandomizer(r Randomizer) Option {
	return func(e *Engine) { e.rnd = r }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithSleep(s SleepFunc) Option {
	return func(e *Engine) { e.sleep = s }
}

func WithRetrier(r *store.Retrier) Option {
	return func(e *Engine) { e.retrier = r }
}

// WithFinalizeGrace sets how long after a task's due time the safety-net
// finalizer and recovery sweep wait before acting.
func WithFinalizeGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

func NewEngine(s store.Store, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store: s,
		rnd:   DefaultRandomizer{},
		now:   time.Now,
		sleep: sleepCtx,
		grace: defaultFinalizeGrace,
		log:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retrier == nil {
		e.retrier = store.NewRetrier(log)
	}
	return e
}

type chargeResult struct {
	task    *models.Task
	message string
	started bool
	overdue bool
}

// Execute runs a Pending task to completion. A task that is not Pending is
// returned unchanged with "Task is already {status}.", except a Running task
// past its due time, which is finalized first.
func (e *Engine) Execute(ctx context.Context, ownerID, taskID uuid.UUID) (*models.Task, string, error) {
	var res chargeResult
	err := e.retrier.Run(ctx, e.store, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = e.charge(ctx, tx, ownerID, taskID)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	switch {
	case res.overdue:
		if _, err := e.FinalizeDue(ctx, ownerID, taskID); err != nil {
			return e.pendingOr(ctx, ownerID, taskID, err)
		}
		return e.reread(ctx, ownerID, taskID)
	case !res.started:
		return res.task, res.message, nil
	}

	task := res.task
	e.log.Info("task started", "task_id", task.ID, "owner_id", ownerID,
		"charged_cost", *task.ChargedCost, "execution_seconds", *task.ExecutionSeconds)

	if err := e.sleep(ctx, time.Duration(*task.ExecutionSeconds)*time.Second); err != nil {
		return nil, "", fmt.Errorf("waiting for task %s: %w", task.ID, err)
	}

	success := SucceedsWithSeed(*task.OutcomeSeed)
	if err := e.Finalize(ctx, ownerID, taskID, success); err != nil {
		return e.pendingOr(ctx, ownerID, taskID, err)
	}
	return e.reread(ctx, ownerID, taskID)
}

func (e *Engine) charge(ctx context.Context, tx store.Tx, ownerID, taskID uuid.UUID) (chargeResult, error) {
	task, err := tx.LoadTask(ctx, ownerID, taskID)
	if err != nil {
		return chargeResult{}, err
	}
	now := e.now()

	if task.Status != models.TaskStatusPending {
		res := chargeResult{task: task, message: fmt.Sprintf("Task is already %s.", task.Status)}
		if task.Status == models.TaskStatusRunning && task.OutcomeSeed != nil {
			if due, ok := task.DueAt(); ok && !now.Before(due) {
				res.overdue = true
			}
		}
		return res, nil
	}

	acc, err := tx.LoadAccount(ctx, ownerID)
	if err != nil {
		return chargeResult{}, err
	}
	granted := ledger.ApplyPendingGrants(acc, now)
	if granted > 0 {
		if err := tx.AppendCreditEntry(ctx, ledger.NewEntry(acc, nil, models.CreditEntryAutoGrant, granted, now)); err != nil {
			return chargeResult{}, err
		}
	}

	cost := e.rnd.Cost()
	task.ChargedCost = &cost

	if acc.Credits < cost {
		zero := 0
		task.Status = models.TaskStatusRejectedInsufficientCredits
		task.StartedAt = &now
		task.CompletedAt = &now
		task.ExecutionSeconds = &zero
		if granted > 0 {
			if err := tx.SaveAccount(ctx, acc); err != nil {
				return chargeResult{}, err
			}
		}
		if err := tx.SaveTask(ctx, task); err != nil {
			return chargeResult{}, err
		}
		return chargeResult{task: task, message: MsgRejected}, nil
	}

	ok, err := ledger.TryDeduct(acc, cost)
	if err != nil {
		return chargeResult{}, err
	}
	if !ok {
		return chargeResult{}, fmt.Errorf("%w: deduction of %d failed after balance check", ErrInvariantViolation, cost)
	}

	seconds := e.rnd.DurationSeconds()
	seed := e.rnd.Seed()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	task.ExecutionSeconds = &seconds
	task.OutcomeSeed = &seed

	if err := tx.SaveAccount(ctx, acc); err != nil {
		return chargeResult{}, err
	}
	taskRef := task.ID
	if err := tx.AppendCreditEntry(ctx, ledger.NewEntry(acc, &taskRef, models.CreditEntryTaskCharge, -cost, now)); err != nil {
		return chargeResult{}, err
	}
	if err := tx.SaveTask(ctx, task); err != nil {
		return chargeResult{}, err
	}
	if e.scheduler != nil {
		due, _ := task.DueAt()
		args := FinalizeTaskArgs{TaskID: task.ID, OwnerID: ownerID}
		if err := e.scheduler.ScheduleFinalize(ctx, tx, args, due.Add(e.grace)); err != nil {
			return chargeResult{}, fmt.Errorf("schedule finalize: %w", err)
		}
	}
	return chargeResult{task: task, started: true}, nil
}

// Finalize moves a Running task to Succeeded or Failed. It is a no-op on a
// terminal task, so concurrent or repeated calls are safe.
func (e *Engine) Finalize(ctx context.Context, ownerID, taskID uuid.UUID, success bool) error {
	_, err := e.finalize(ctx, ownerID, taskID, success)
	return err
}

// finalize reports whether this call performed the transition.
func (e *Engine) finalize(ctx context.Context, ownerID, taskID uuid.UUID, success bool) (bool, error) {
	var changed bool
	err := e.retrier.Run(ctx, e.store, func(ctx context.Context, tx store.Tx) error {
		changed = false
		task, err := tx.LoadTask(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		if task.Status.Terminal() {
			return nil
		}
		if task.Status != models.TaskStatusRunning {
			return fmt.Errorf("%w: finalize of %s task %s", ErrInvariantViolation, task.Status, task.ID)
		}
		now := e.now()
		task.Status = models.TaskStatusFailed
		if success {
			task.Status = models.TaskStatusSucceeded
		}
		task.CompletedAt = &now
		if err := tx.SaveTask(ctx, task); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if errors.Is(err, store.ErrContention) {
		e.log.Warn("finalize exhausted retries", "task_id", taskID, "error", err)
	}
	return changed && err == nil, err
}

// FinalizeDue finalizes a Running task from its seed once its run time has
// passed. It returns the remaining wait when the task is not yet due and does
// nothing for tasks that are not Running.
func (e *Engine) FinalizeDue(ctx context.Context, ownerID, taskID uuid.UUID) (time.Duration, error) {
	wait, _, err := e.finalizeDue(ctx, ownerID, taskID)
	return wait, err
}

func (e *Engine) finalizeDue(ctx context.Context, ownerID, taskID uuid.UUID) (time.Duration, bool, error) {
	task, err := e.store.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return 0, false, err
	}
	if task.Status != models.TaskStatusRunning {
		return 0, false, nil
	}
	due, ok := task.DueAt()
	if !ok || task.OutcomeSeed == nil {
		return 0, false, fmt.Errorf("%w: running task %s lacks start data", ErrInvariantViolation, task.ID)
	}
	if wait := due.Sub(e.now()); wait > 0 {
		return wait, false, nil
	}
	changed, err := e.finalize(ctx, ownerID, taskID, SucceedsWithSeed(*task.OutcomeSeed))
	return 0, changed, err
}

// Recover finalizes Running tasks whose due time plus grace has passed.
// It returns the number of tasks this sweep moved to a terminal status;
// tasks another caller finalized first are not counted.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	overdue, err := e.store.ListOverdueRunning(ctx, e.now().Add(-e.grace), defaultRecoverBatch)
	if err != nil {
		return 0, fmt.Errorf("list overdue tasks: %w", err)
	}
	n := 0
	for _, t := range overdue {
		_, changed, err := e.finalizeDue(ctx, t.OwnerID, t.ID)
		if err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			e.log.Error("recover task", "task_id", t.ID, "error", err)
			continue
		}
		if changed {
			n++
		}
	}
	return n, nil
}

// RunRecovery calls Recover every interval until ctx is done.
func (e *Engine) RunRecovery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := e.Recover(ctx); err != nil {
				e.log.Error("recovery sweep failed", "error", err)
			} else if n > 0 {
				e.log.Info("recovered overdue tasks", "count", n)
			}
		}
	}
}

func (e *Engine) reread(ctx context.Context, ownerID, taskID uuid.UUID) (*models.Task, string, error) {
	task, err := e.store.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, "", err
	}
	return task, messageFor(task), nil
}

// pendingOr reports contention during finalization as a Running task with a
// retry hint; other errors are returned as is.
func (e *Engine) pendingOr(ctx context.Context, ownerID, taskID uuid.UUID, err error) (*models.Task, string, error) {
	if !errors.Is(err, store.ErrContention) {
		return nil, "", err
	}
	task, rerr := e.store.GetTask(ctx, ownerID, taskID)
	if rerr != nil {
		return nil, "", rerr
	}
	if task.Status.Terminal() {
		return task, messageFor(task), nil
	}
	return task, MsgFinalizePending, nil
}

func messageFor(t *models.Task) string {
	switch t.Status {
	case models.TaskStatusSucceeded:
		return MsgSucceeded
	case models.TaskStatusFailed:
		return MsgFailed
	case models.TaskStatusRejectedInsufficientCredits:
		return MsgRejected
	}
	return fmt.Sprintf("Task is already %s.", t.Status)
}
