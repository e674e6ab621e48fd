package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified access-token claims attached by
// RequireAuthenticated.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// accessToken reads the Authorization header. Both "Bearer <token>" and a
// bare token are accepted.
func accessToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	const bearer = "Bearer "
	if len(h) >= len(bearer) && strings.EqualFold(h[:len(bearer)], bearer) {
		h = strings.TrimSpace(h[len(bearer):])
	}
	return h
}

// RequireAuthenticated rejects requests without a valid access token and
// attaches the token claims to the request context.
func (s *Server) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		claims, err := s.tokens.VerifyAccess(token)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = logging.WithAccountID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RejectIfAuthenticated guards login and signup. A request without a token,
// or with one that does not verify, passes through; a valid access token
// is rejected.
func (s *Server) RejectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := accessToken(r); token != "" {
			if _, err := s.tokens.VerifyAccess(token); err == nil {
				s.fail(w, r, common.ErrAlreadyAuthenticated)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSeller loads the authenticated account and admits sellers only.
// It must run after RequireAuthenticated.
func (s *Server) RequireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		account, err := s.auth.Profile(r.Context(), claims.UserID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			s.fail(w, r, common.ErrForbidden)
			return
		case err != nil:
			s.fail(w, r, err)
			return
		case !account.IsSeller:
			s.fail(w, r, common.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// observe records request metrics and writes the access log line; the
// logger adds the request id. Routes are labelled by pattern so path
// parameters never become label values.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	})
}
