// Package password hashes and checks account passwords with bcrypt and
// enforces the strength policy used on the security-settings path.
package password

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor.
const Cost = bcrypt.DefaultCost

// MinLength is the shortest password the strength policy accepts.
const MinLength = 8

// MaxBytes is the longest password bcrypt can hash.
const MaxBytes = 72

// CheckLength rejects passwords bcrypt cannot hash.
func CheckLength(field, plain string) error {
	if len(plain) > MaxBytes {
		return common.NewValidationError(field, "password must be at most %d bytes long", MaxBytes)
	}
	return nil
}

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	if err := CheckLength("password", plain); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plain matches hash. A mismatch yields
// common.ErrInvalidCredentials.
func Verify(plain, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrInvalidCredentials
	}
	return fmt.Errorf("verify password: %w", err)
}

// CheckStrength requires at least MinLength characters including a lowercase
// letter, an uppercase letter, a digit and a special character.
func CheckStrength(field, plain string) error {
	if len([]rune(plain)) < MinLength {
		return common.NewValidationError(field, "password must be at least %d characters long", MinLength)
	}
	if err := CheckLength(field, plain); err != nil {
		return err
	}

	var lower, upper, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	if !lower || !upper || !digit || !special {
		return common.NewValidationError(field,
			"password must contain uppercase and lowercase letters, a number and a special character")
	}
	return nil
}
