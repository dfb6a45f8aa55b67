// Package account serves the authenticated account's own view: balance,
// pending auto-grants and the credit ledger.
package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/ledger"
	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

const LedgerLimit = 100

type Service struct {
	store   store.Store
	retrier *store.Retrier
	now     func() time.Time
}

func NewService(s store.Store, r *store.Retrier) *Service {
	return &Service{store: s, retrier: r, now: time.Now}
}

// EnsureAutoGrants applies pending auto-grants to acc in memory and returns
// the credits added. The caller persists acc.
func (s *Service) EnsureAutoGrants(acc *models.Account, now time.Time) int {
	return ledger.ApplyPendingGrants(acc, now)
}

// GetMe returns the account after applying and persisting any pending
// auto-grants.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var out *models.Account
	err := s.retrier.Run(ctx, s.store, func(ctx context.Context, tx store.Tx) error {
		acc, err := tx.LoadAccount(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		if granted := s.EnsureAutoGrants(acc, now); granted > 0 {
			if err := tx.SaveAccount(ctx, acc); err != nil {
				return err
			}
			if err := tx.AppendCreditEntry(ctx, ledger.NewEntry(acc, nil, models.CreditEntryAutoGrant, granted, now)); err != nil {
				return err
			}
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListLedger returns the account's most recent credit entries, newest first.
func (s *Service) ListLedger(ctx context.Context, userID uuid.UUID) ([]*models.CreditEntry, error) {
	return s.store.ListCreditEntries(ctx, userID, LedgerLimit)
}
