// Package rest is the HTTP surface of the marketplace: routing, session
// middleware, cookie handling and the JSON error envelope.
package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuthAPI is the account side consumed by the handlers.
type AuthAPI interface {
	Signup(ctx context.Context, in services.SignupInput) error
	VerifyEmail(ctx context.Context, token string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.Session, error)
	Logout(ctx context.Context, accountID string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*services.Session, error)
	ChangePassword(ctx context.Context, accountID, current, next string) (*services.Session, error)
	Profile(ctx context.Context, accountID string) (*models.Account, error)
	UpdateName(ctx context.Context, accountID, name string) (*models.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// SellerAPI is the seller side consumed by the handlers.
type SellerAPI interface {
	BecomeSeller(ctx context.Context, accountID string, in services.ProfileInput) (*models.Account, error)
	Onboard(ctx context.Context, accountID string, in services.OnboardingInput) (*services.OnboardResult, error)
	UpdateSettings(ctx context.Context, accountID string, in services.ProfileInput) (*models.Account, error)
	CreateProduct(ctx context.Context, sellerID string, in services.ProductInput) (*models.Product, error)
	ListProducts(ctx context.Context, sellerID string) ([]models.Product, error)
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

const shutdownTimeout = 10 * time.Second

type Server struct {
	address        string
	auth           AuthAPI
	seller         SellerAPI
	tokens         TokenVerifier
	metrics        *metrics.Manager
	logger         logging.Logger
	cookies        cookieConfig
	development    bool
	frontendURL    string
	maxUploadBytes int64
}

func NewServer(cfg *config.Config, l logging.Logger, a AuthAPI, sa SellerAPI, tv TokenVerifier, m *metrics.Manager) *Server {
	return &Server{
		address:        cfg.HTTPAddr,
		auth:           a,
		seller:         sa,
		tokens:         tv,
		metrics:        m,
		logger:         l.With("module", "rest"),
		cookies:        newCookieConfig(cfg),
		development:    cfg.IsDevelopment(),
		frontendURL:    strings.TrimRight(cfg.FrontendURL, "/"),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.RejectIfAuthenticated)
		r.Post("/signup", s.signup)
		r.Post("/login", s.login)
	})

	r.Get("/verify-email/{token}", s.verifyEmail)
	r.Post("/refresh-token", s.refreshToken)
	r.Post("/forgot-password", s.forgotPassword)
	r.Post("/reset-password", s.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuthenticated)

		r.Post("/logout", s.logout)
		r.Get("/me", s.me)
		r.Patch("/me", s.updateMe)
		r.Delete("/me", s.deleteMe)
		r.Put("/me/password", s.changePassword)

		r.Post("/become-seller", s.becomeSeller)
		r.Post("/onboard", s.onboard)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSeller)
			r.Patch("/seller/settings", s.updateSellerSettings)
			r.Get("/seller/products", s.listProducts)
			r.Post("/products", s.createProduct)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// in-flight requests drain before the caller closes shared resources
	<-stopped
	return nil
}
