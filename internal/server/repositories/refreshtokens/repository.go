// Package refreshtokens declares the server-side repository contract for
// the one-per-account refresh token record.
package refreshtokens

import (
	"context"
	"time"
)

// Repository stores at most one refresh token hash per account.
type Repository interface {
	// Upsert stores tokenHash as the account's only refresh token, replacing any previous one.
	Upsert(ctx context.Context, userID string, tokenHash string, expires time.Time) error

	// Rotate swaps oldHash for newHash only if oldHash is still the stored value.
	// It returns common.ErrorUnauthorized when the swap did not happen.
	Rotate(ctx context.Context, userID string, oldHash string, newHash string, expires time.Time) error

	// Delete removes the account's refresh token. A missing row is not an error.
	Delete(ctx context.Context, userID string) error
}
