package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry types.
const (
	CreditEntrySignupGrant = "signup_grant"
	CreditEntryAutoGrant   = "auto_grant"
	CreditEntryTaskCharge  = "task_charge"
)

// CreditEntry is an append-only audit row describing one balance change.
// Amount is signed: grants are positive, charges negative.
type CreditEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
