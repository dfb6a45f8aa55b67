package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/models"
)

type CreditRepo struct{}

// Create inserts a ledger entry. Entries are append-only.
func (r *CreditRepo) Create(ctx context.Context, q querier, c *models.CreditEntry) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO credit_ledger (id, account_id, task_id, entry_type, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.AccountID, c.TaskID, c.EntryType, c.Amount, c.BalanceAfter, c.CreatedAt)
	return mapError(err, "credit entry")
}

func (r *CreditRepo) ListByAccountID(ctx context.Context, q querier, accountID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, account_id, task_id, entry_type, amount, balance_after, created_at
		FROM credit_ledger WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, mapError(err, "credit entry")
	}
	defer rows.Close()
	var list []*models.CreditEntry
	for rows.Next() {
		var c models.CreditEntry
		if err := rows.Scan(&c.ID, &c.AccountID, &c.TaskID, &c.EntryType, &c.Amount, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, mapError(err, "credit entry")
		}
		list = append(list, &c)
	}
	return list, mapError(rows.Err(), "credit entry")
}
