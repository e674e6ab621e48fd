package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probe records whether it was reached and which claims it saw.
type probe struct {
	called bool
	claims *auth.Claims
}

func (p *probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.claims, _ = ClaimsFromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func serve(h http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuthenticated(t *testing.T) {
	ts := newTestServer(t)
	token := ts.accessToken(t, "u-1")
	refresh, _, err := ts.jwt.Issue(auth.Subject{UserID: "u-1"}, auth.KindRefresh)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"empty bearer", http.Header{"Authorization": {"Bearer "}}, http.StatusUnauthorized},
		{"garbage", bearer("garbage"), http.StatusUnauthorized},
		{"refresh token", bearer(refresh), http.StatusUnauthorized},
		{"bearer prefix", bearer(token), http.StatusNoContent},
		{"lowercase prefix", http.Header{"Authorization": {"bearer " + token}}, http.StatusNoContent},
		{"raw token", http.Header{"Authorization": {token}}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &probe{}
			rec := serve(ts.srv.RequireAuthenticated(p), tt.header)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusNoContent, p.called)
			if p.called {
				require.NotNil(t, p.claims)
				assert.Equal(t, "u-1", p.claims.UserID)
				assert.Equal(t, "u-1@x.com", p.claims.Email)
			}
		})
	}
}

func TestRejectIfAuthenticated_PassesWithoutToken(t *testing.T) {
	ts := newTestServer(t)
	p := &probe{}

	rec := serve(ts.srv.RejectIfAuthenticated(p), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, p.called)
}

func TestRejectIfAuthenticated_PassesWithInvalidToken(t *testing.T) {
	ts := newTestServer(t)
	p := &probe{}

	rec := serve(ts.srv.RejectIfAuthenticated(p), bearer("stale-or-forged"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, p.called)
}

func TestRejectIfAuthenticated_RejectsValidToken(t *testing.T) {
	ts := newTestServer(t)
	p := &probe{}

	rec := serve(ts.srv.RejectIfAuthenticated(p), bearer(ts.accessToken(t, "u-1")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, p.called)
	assert.Equal(t, common.ErrAlreadyAuthenticated.Error(), decodeError(t, rec).Message)
}

func TestRequireSeller(t *testing.T) {
	tests := []struct {
		name       string
		account    *models.Account
		profileErr error
		status     int
	}{
		{"seller", &models.Account{ID: "u-1", IsSeller: true}, nil, http.StatusNoContent},
		{"customer", &models.Account{ID: "u-1"}, nil, http.StatusForbidden},
		{"account gone", nil, common.ErrorNotFound, http.StatusForbidden},
		{"lookup failure", nil, errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.auth.account = tt.account
			ts.auth.profileErr = tt.profileErr

			p := &probe{}
			h := ts.srv.RequireAuthenticated(ts.srv.RequireSeller(p))
			rec := serve(h, bearer(ts.accessToken(t, "u-1")))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusNoContent, p.called)
			assert.Equal(t, []string{"u-1"}, ts.auth.lastArgs)
		})
	}
}

func TestRequireSeller_WithoutClaims(t *testing.T) {
	ts := newTestServer(t)
	p := &probe{}
	rec := serve(ts.srv.RequireSeller(p), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.auth.calls)
}

func TestObserve_LabelsByRoutePattern(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.err = common.ErrExpiredOrInvalid

	ts.do(http.MethodGet, "/verify-email/abc", "", nil)
	ts.do(http.MethodGet, "/verify-email/def", "", nil)
	ts.do(http.MethodGet, "/nowhere", "", nil)
	ts.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/verify-email/{token}", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}
