// Package auth signs and verifies the JWTs used by the marketplace. Every
// token kind has its own secret and lifetime, and a token of one kind is
// never accepted as another.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind names a token purpose.
type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// Claims is the token payload: the standard claims plus the account
// identity and the token kind.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Kind   Kind   `json:"kind"`
}

// Subject is the identity embedded into a token.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// KindConfig is the signing secret and lifetime of one token kind.
type KindConfig struct {
	Secret   []byte
	Validity time.Duration
}

// Manager issues and verifies tokens of the configured kinds.
type Manager struct {
	kinds map[Kind]KindConfig
	now   func() time.Time
}

// NewManager builds a Manager. Each kind must have a non-empty secret.
func NewManager(kinds map[Kind]KindConfig) (*Manager, error) {
	for k, c := range kinds {
		if len(c.Secret) == 0 {
			return nil, fmt.Errorf("auth: empty secret for %s tokens", k)
		}
		if c.Validity <= 0 {
			return nil, fmt.Errorf("auth: non-positive validity for %s tokens", k)
		}
	}
	return &Manager{kinds: kinds, now: time.Now}, nil
}

// Validity returns the configured lifetime of kind.
func (m *Manager) Validity(kind Kind) time.Duration {
	return m.kinds[kind].Validity
}

// Issue signs a token of the given kind for sub and returns it with its expiry.
func (m *Manager) Issue(sub Subject, kind Kind) (string, time.Time, error) {
	cfg, ok := m.kinds[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("auth: unknown token kind %q", kind)
	}

	now := m.now()
	expires := now.Add(cfg.Validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: sub.UserID,
		Email:  sub.Email,
		Role:   sub.Role,
		Kind:   kind,
	})

	signed, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expires, nil
}

// Verify checks signature, expiry and kind. Expired tokens yield
// common.ErrTokenExpired; every other failure yields common.ErrInvalidToken.
func (m *Manager) Verify(tokenString string, kind Kind) (*Claims, error) {
	cfg, ok := m.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("auth: unknown token kind %q", kind)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Kind != kind {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
