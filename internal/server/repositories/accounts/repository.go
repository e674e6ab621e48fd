// Package accounts declares the repository contract for marketplace accounts
// and its PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/petmarket/internal/server/models"
)

// Repository defines persistence operations on accounts.
type Repository interface {
	// Create inserts a verified account. A duplicate email yields common.ErrEmailTaken.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// UpdateSellerProfile writes the seller fields and flips the account to the
	// seller role in a single statement.
	UpdateSellerProfile(ctx context.Context, id string, profile models.SellerProfile) error

	// UpdateSellerSettings rewrites seller fields of an account that is already a seller.
	// Empty image and document URLs keep the stored values.
	UpdateSellerSettings(ctx context.Context, id string, profile models.SellerProfile) error

	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdateName(ctx context.Context, id string, name string) error
	Delete(ctx context.Context, id string) error
}
