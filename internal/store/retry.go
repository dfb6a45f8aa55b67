package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
	defaultMaxDelay    = 200 * time.Millisecond
)

// TxFn is a unit of work executed inside a transaction. Returning nil commits.
type TxFn func(ctx context.Context, tx Tx) error

// Retrier runs units of work under optimistic concurrency: on a version
// conflict the transaction is rolled back and the whole unit re-run with
// fresh reads, up to a bounded number of attempts.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	log         *slog.Logger
}

type RetrierOption func(*Retrier)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RetrierOption {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential backoff base and cap between attempts.
func WithBackoff(base, max time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.baseDelay = base
		r.maxDelay = max
	}
}

func NewRetrier(log *slog.Logger, opts ...RetrierOption) *Retrier {
	if log == nil {
		log = slog.Default()
	}
	r := &Retrier{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fn in a fresh transaction per attempt. Conflicts are retried
// with jittered exponential backoff; any other error rolls back and returns
// immediately. Exhausting the attempts yields ErrContention.
func (r *Retrier) Run(ctx context.Context, b Beginner, fn TxFn) error {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithJitterPercent(50, backoff)
	backoff = retry.WithCappedDuration(r.maxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(r.maxAttempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := RunInTransaction(ctx, b, fn, r.log)
		if errors.Is(err, ErrConcurrencyConflict) {
			r.log.Debug("optimistic conflict, retrying", "attempt", attempt, "max_attempts", r.maxAttempts)
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, ErrConcurrencyConflict) {
		r.log.Warn("optimistic retries exhausted", "attempts", attempt)
		return fmt.Errorf("%w after %d attempts", ErrContention, attempt)
	}
	return err
}

// RunInTransaction executes fn within a single transaction. It rolls back if
// fn returns an error or panics, and commits otherwise.
func RunInTransaction(ctx context.Context, b Beginner, fn TxFn, log *slog.Logger) (err error) {
	if log == nil {
		log = slog.Default()
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("failed to roll back transaction after panic", "error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error("failed to roll back transaction", "rollback_error", rbErr, "original_error", err)
			return fmt.Errorf("roll back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
