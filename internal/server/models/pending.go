package models

import "time"

// PendingSignup is a registration waiting for email confirmation.
// No account row exists while it is pending.
type PendingSignup struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PasswordReset is an outstanding forgot-password request.
type PasswordReset struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}
