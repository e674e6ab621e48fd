// Package services contains the server-side business logic: token issuance
// and rotation, signup and password flows, and seller onboarding.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken    string
	RefreshToken   string
	RefreshExpires time.Time
}

// Session is what a successful login, verification, refresh or reset yields.
type Session struct {
	Account *models.Account
	Tokens  *TokenPair
}

// TokenService issues access/refresh pairs and keeps at most one valid
// refresh token per account.
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwt         *auth.Manager
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, jwt *auth.Manager) *TokenService {
	return &TokenService{db: db, repomanager: m, jwt: jwt}
}

func subjectOf(a *models.Account) auth.Subject {
	return auth.Subject{UserID: a.ID, Email: a.Email, Role: a.Role}
}

func (s *TokenService) mint(a *models.Account) (*TokenPair, error) {
	access, _, err := s.jwt.Issue(subjectOf(a), auth.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, expires, err := s.jwt.Issue(subjectOf(a), auth.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpires: expires}, nil
}

// IssuePair mints a new pair and replaces the stored refresh token of the
// account. db may be an open transaction.
func (s *TokenService) IssuePair(ctx context.Context, a *models.Account, db dbx.DBTX) (*TokenPair, error) {
	pair, err := s.mint(a)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.RefreshTokens(db)
	if err := repo.Upsert(ctx, a.ID, common.HashToken(pair.RefreshToken), pair.RefreshExpires); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The token must be the
// one currently stored for its account; a superseded, expired or forged
// token yields common.ErrorUnauthorized.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.jwt.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	pair, err := s.mint(account)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.Rotate(ctx, account.ID, common.HashToken(refreshToken), common.HashToken(pair.RefreshToken), pair.RefreshExpires); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &Session{Account: account, Tokens: pair}, nil
}

// Revoke deletes the stored refresh token of the account.
func (s *TokenService) Revoke(ctx context.Context, accountID string) error {
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, accountID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(token string) (*auth.Claims, error) {
	return s.jwt.Verify(token, auth.KindAccess)
}
