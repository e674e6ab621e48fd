// Package models defines server-side data models persisted in the database
// or in the ephemeral token store.
package models

import "time"

// Account is a marketplace identity. Seller fields stay empty until the
// account goes through onboarding.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string

	IsSeller       bool
	IsVerified     bool
	SellerVerified bool

	SellerProfile

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SellerProfile holds the business fields written when an account becomes
// a seller or updates its seller settings.
type SellerProfile struct {
	BusinessName        string
	PhoneNumber         string
	Address             string
	City                string
	State               string
	BusinessDescription string
	BrandImageURL       string
	VerificationDocURL  string
}
