package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credit-bearing entity owned by a single user.
type Account struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	Credits         int        `json:"credits"`
	RegisteredAt    time.Time  `json:"registered_at"`
	LastAutoGrantAt *time.Time `json:"last_auto_grant_at,omitempty"`
	// Version changes on every successful write; saves compare it to the stored value.
	Version int64 `json:"-"`
}
