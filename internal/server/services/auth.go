package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
	"github.com/dmitrijs2005/petmarket/internal/server/events"
	"github.com/dmitrijs2005/petmarket/internal/server/mailer"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/password"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/pending"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/repomanager"
)

// Deps are the collaborators shared by the account-facing services.
type Deps struct {
	DB      *sql.DB
	Repos   repomanager.RepositoryManager
	Tokens  *TokenService
	JWT     *auth.Manager
	Pending pending.Store
	Mailer  mailer.Sender
	Events  events.Publisher
	Metrics *metrics.Manager
	Log     logging.Logger
}

// SignupInput is the registration payload.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService implements signup with email verification, login, logout,
// token refresh, the forgot/reset password flow and account self-service.
type AuthService struct {
	Deps
	publicURL   string
	frontendURL string
	now         func() time.Time
}

func NewAuthService(d Deps, cfg *config.Config) *AuthService {
	return &AuthService{
		Deps:        d,
		publicURL:   strings.TrimRight(cfg.PublicURL, "/"),
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		now:         time.Now,
	}
}

// dummyHash keeps login timing the same for unknown emails.
var dummyHash = sync.OnceValue(func() string {
	h, _ := password.Hash("petmarket-unknown-account")
	return h
})

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return common.MissingField("email")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return common.NewValidationError("email", "email is not a valid address")
	}
	return nil
}

// checkNotExpired guards ephemeral records whose store TTL may lag behind
// the recorded expiry.
func checkNotExpired(now, expiresAt time.Time) error {
	if expiresAt.IsZero() || !now.Before(expiresAt) {
		return common.ErrExpiredOrInvalid
	}
	return nil
}

// Signup stores a pending registration and emails a verification link.
// No account exists until the link is followed.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) error {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if in.Password == "" {
		return common.MissingField("password")
	}
	if err := password.CheckLength("password", in.Password); err != nil {
		return err
	}

	_, err := s.Repos.Accounts(s.DB).GetByEmail(ctx, email)
	switch {
	case err == nil:
		return common.ErrEmailTaken
	case !errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("lookup account: %w", err)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return err
	}

	token, expires, err := s.JWT.Issue(auth.Subject{Email: email}, auth.KindEmailVerification)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	rec := models.PendingSignup{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		ExpiresAt:    expires,
	}
	validity := s.JWT.Validity(auth.KindEmailVerification)
	if err := s.Pending.Put(ctx, pending.KindSignup, common.HashToken(token), rec, validity); err != nil {
		return fmt.Errorf("store pending signup: %w", err)
	}

	subject, body, err := mailer.VerificationEmail(rec.Name, s.publicURL+"/verify-email/"+token, validity.String())
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}
	if err := s.Mailer.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	s.Metrics.SignupsTotal.Inc()
	s.Log.Info(ctx, "signup pending verification", "email", email)
	return nil
}

// VerifyEmail consumes a verification token, creates the verified account
// and opens a session for it.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	claims, err := s.JWT.Verify(token, auth.KindEmailVerification)
	if err != nil {
		return nil, common.ErrExpiredOrInvalid
	}

	var rec models.PendingSignup
	if err := s.Pending.Take(ctx, pending.KindSignup, common.HashToken(token), &rec); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrExpiredOrInvalid
		}
		return nil, fmt.Errorf("load pending signup: %w", err)
	}
	if err := checkNotExpired(s.now(), rec.ExpiresAt); err != nil {
		return nil, err
	}
	if rec.Email != claims.Email {
		return nil, common.ErrExpiredOrInvalid
	}

	account := &models.Account{
		Name:         rec.Name,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Role:         common.RoleCustomer,
		IsVerified:   true,
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.Repos.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}
		var err error
		pair, err = s.Tokens.IssuePair(ctx, account, tx)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrEmailTaken) {
			s.restorePending(ctx, token, rec)
		}
		return nil, err
	}

	s.Metrics.VerificationsTotal.Inc()
	s.publish(ctx, events.SubjectAccountVerified, events.AccountVerified{AccountID: account.ID, Email: account.Email, At: s.now()})
	s.Log.Info(ctx, "account verified", "account_id", account.ID)

	return &Session{Account: account, Tokens: pair}, nil
}

// restorePending puts a consumed signup back after a failed transaction so
// the link keeps working until it expires.
func (s *AuthService) restorePending(ctx context.Context, token string, rec models.PendingSignup) {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.Pending.Put(ctx, pending.KindSignup, common.HashToken(token), rec, ttl); err != nil {
		s.Log.Error(ctx, "restore pending signup failed", "email", rec.Email, "error", err)
	}
}

// Login checks credentials and opens a session. Any previous refresh token
// of the account stops working.
func (s *AuthService) Login(ctx context.Context, email, plain string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, common.MissingField("email")
	}
	if plain == "" {
		return nil, common.MissingField("password")
	}

	account, err := s.Repos.Accounts(s.DB).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = password.Verify(plain, dummyHash())
			s.Metrics.LoginsTotal.WithLabelValues("error").Inc()
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := password.Verify(plain, account.PasswordHash); err != nil {
		s.Metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	pair, err := s.Tokens.IssuePair(ctx, account, s.DB)
	if err != nil {
		return nil, err
	}

	s.Metrics.LoginsTotal.WithLabelValues("ok").Inc()
	return &Session{Account: account, Tokens: pair}, nil
}

// Refresh exchanges the current refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	session, err := s.Tokens.Refresh(ctx, refreshToken)
	s.Metrics.TokenRefreshesTotal.WithLabelValues(metrics.Result(err)).Inc()
	return session, err
}

// Logout revokes the account's refresh token.
func (s *AuthService) Logout(ctx context.Context, accountID string) error {
	return s.Tokens.Revoke(ctx, accountID)
}

// ForgotPassword emails a single-use reset link. Unknown emails yield
// common.ErrorNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return common.MissingField("email")
	}

	account, err := s.Repos.Accounts(s.DB).GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, expires, err := s.JWT.Issue(subjectOf(account), auth.KindPasswordReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	validity := s.JWT.Validity(auth.KindPasswordReset)
	rec := models.PasswordReset{UserID: account.ID, Email: account.Email, ExpiresAt: expires}
	if err := s.Pending.Put(ctx, pending.KindPasswordReset, common.HashToken(token), rec, validity); err != nil {
		return fmt.Errorf("store reset request: %w", err)
	}

	subject, body, err := mailer.PasswordResetEmail(account.Email, s.frontendURL+"/reset-password?token="+token, validity.String())
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := s.Mailer.Send(ctx, account.Email, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	s.Log.Info(ctx, "password reset requested", "account_id", account.ID)
	return nil
}

// ResetPassword consumes a reset token, stores the new password hash,
// rotates the refresh token and opens a new session.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*Session, error) {
	if token == "" {
		return nil, common.MissingField("token")
	}
	if newPassword == "" {
		return nil, common.MissingField("password")
	}
	if err := password.CheckLength("password", newPassword); err != nil {
		return nil, err
	}

	claims, err := s.JWT.Verify(token, auth.KindPasswordReset)
	if err != nil {
		return nil, common.ErrExpiredOrInvalid
	}

	var rec models.PasswordReset
	if err := s.Pending.Take(ctx, pending.KindPasswordReset, common.HashToken(token), &rec); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrExpiredOrInvalid
		}
		return nil, fmt.Errorf("load reset request: %w", err)
	}
	if err := checkNotExpired(s.now(), rec.ExpiresAt); err != nil {
		return nil, err
	}
	if rec.UserID != claims.UserID {
		return nil, common.ErrExpiredOrInvalid
	}

	session, err := s.replacePassword(ctx, rec.UserID, newPassword)
	if err != nil {
		return nil, err
	}

	s.Metrics.PasswordResetsTotal.Inc()
	s.publish(ctx, events.SubjectPasswordReset, events.PasswordReset{AccountID: rec.UserID, At: s.now()})
	return session, nil
}

// ChangePassword is the security-settings path: it requires the current
// password and enforces the strength policy.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) (*Session, error) {
	if current == "" {
		return nil, common.MissingField("current_password")
	}
	if err := password.CheckStrength("new_password", next); err != nil {
		return nil, err
	}
	if current == next {
		return nil, common.NewValidationError("new_password", "new password must differ from the current one")
	}

	account, err := s.Repos.Accounts(s.DB).GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := password.Verify(current, account.PasswordHash); err != nil {
		return nil, err
	}

	return s.replacePassword(ctx, accountID, next)
}

func (s *AuthService) replacePassword(ctx context.Context, accountID, plain string) (*Session, error) {
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}

	var session *Session
	err = dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)
		if err := repo.UpdatePassword(ctx, accountID, hash); err != nil {
			return err
		}
		account, err := repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		pair, err := s.Tokens.IssuePair(ctx, account, tx)
		if err != nil {
			return err
		}
		session = &Session{Account: account, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Profile returns the account.
func (s *AuthService) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	return s.Repos.Accounts(s.DB).GetByID(ctx, accountID)
}

// UpdateName changes the display name.
func (s *AuthService) UpdateName(ctx context.Context, accountID, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.MissingField("name")
	}
	repo := s.Repos.Accounts(s.DB)
	if err := repo.UpdateName(ctx, accountID, name); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, accountID)
}

// DeleteAccount removes the account together with its refresh token and products.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.Repos.Accounts(s.DB).Delete(ctx, accountID); err != nil {
		return err
	}
	s.Log.Info(ctx, "account deleted", "account_id", accountID)
	return nil
}

// publish sends an event without failing the caller.
func (s *Deps) publish(ctx context.Context, subject string, payload any) {
	if err := s.Events.Publish(ctx, subject, payload); err != nil {
		s.Log.Warn(ctx, "event not published", "subject", subject, "error", err)
	}
}
