// Package events publishes domain events (account verified, seller
// onboarded, password reset) to NATS.
package events

import (
	"context"
	"time"
)

// Subjects.
const (
	SubjectAccountVerified = "petmarket.account.verified"
	SubjectSellerOnboarded = "petmarket.seller.onboarded"
	SubjectPasswordReset   = "petmarket.password.reset"
)

// Publisher sends one event. Callers treat delivery as best-effort.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type AccountVerified struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	At        time.Time `json:"at"`
}

type SellerOnboarded struct {
	AccountID    string    `json:"account_id"`
	ProductID    string    `json:"product_id,omitempty"`
	BusinessName string    `json:"business_name"`
	At           time.Time `json:"at"`
}

type PasswordReset struct {
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
