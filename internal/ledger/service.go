// Package ledger holds the credit rules for an account: starting balance,
// periodic auto-grants and non-negative deductions. Functions here mutate the
// in-memory record only; persistence and retries belong to the caller.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/models"
)

const (
	StartingCredits = 500
	AutoGrantAmount = 100
	AutoGrantEvery  = 3 * 24 * time.Hour
)

// ErrInvalidAmount is returned for negative deductions. It marks a caller bug
// and is never retried.
var ErrInvalidAmount = errors.New("invalid credit amount")

// ApplyPendingGrants credits every full grant period elapsed since the last
// grant (or registration) and returns the number of credits added.
// Must run before any deduction decision in the same operation.
func ApplyPendingGrants(acc *models.Account, now time.Time) int {
	anchor := acc.RegisteredAt
	if acc.LastAutoGrantAt != nil {
		anchor = *acc.LastAutoGrantAt
	}
	periods := PeriodsElapsed(anchor, now, AutoGrantEvery)
	if periods == 0 {
		return 0
	}
	granted := periods * AutoGrantAmount
	acc.Credits += granted
	next := AdvanceAnchor(anchor, periods, AutoGrantEvery)
	acc.LastAutoGrantAt = &next
	return granted
}

// TryDeduct removes amount from the balance if it stays non-negative.
// It reports false without mutating when funds are insufficient.
func TryDeduct(acc *models.Account, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if acc.Credits-amount < 0 {
		return false, nil
	}
	acc.Credits -= amount
	return true, nil
}

// NewEntry builds an audit entry for a change already applied to acc.
func NewEntry(acc *models.Account, taskID *uuid.UUID, entryType string, amount int, at time.Time) *models.CreditEntry {
	return &models.CreditEntry{
		ID:           uuid.New(),
		AccountID:    acc.ID,
		TaskID:       taskID,
		EntryType:    entryType,
		Amount:       amount,
		BalanceAfter: acc.Credits,
		CreatedAt:    at,
	}
}
