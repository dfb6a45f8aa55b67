package auth

import (
	"context"

	"github.com/credittasks/backend/internal/models"
)

// Repository is the slice of the store the auth service needs.
type Repository interface {
	CreateAccount(ctx context.Context, a *models.Account, signup *models.CreditEntry) error
	GetAccountByLogin(ctx context.Context, emailOrUsername string) (*models.Account, error)
}
