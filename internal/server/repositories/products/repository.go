// Package products declares the repository contract for seller listings.
package products

import (
	"context"

	"github.com/dmitrijs2005/petmarket/internal/server/models"
)

// Repository defines persistence operations on products.
type Repository interface {
	// Create inserts a product and fills in its ID and CreatedAt.
	Create(ctx context.Context, product *models.Product) (*models.Product, error)

	// ListBySeller returns the seller's products, newest first.
	ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error)
}
