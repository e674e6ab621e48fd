package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/services"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeAuth returns canned results and records what it was called with.
type fakeAuth struct {
	session *services.Session
	account *models.Account
	err     error

	profileErr error
	calls      []string
	lastArgs   []string
	lastSignup services.SignupInput
}

func (f *fakeAuth) record(name string, args ...string) {
	f.calls = append(f.calls, name)
	f.lastArgs = args
}

func (f *fakeAuth) Signup(ctx context.Context, in services.SignupInput) error {
	f.record("Signup")
	f.lastSignup = in
	return f.err
}

func (f *fakeAuth) VerifyEmail(ctx context.Context, token string) (*services.Session, error) {
	f.record("VerifyEmail", token)
	return f.session, f.err
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*services.Session, error) {
	f.record("Login", email, password)
	return f.session, f.err
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*services.Session, error) {
	f.record("Refresh", refreshToken)
	return f.session, f.err
}

func (f *fakeAuth) Logout(ctx context.Context, accountID string) error {
	f.record("Logout", accountID)
	return f.err
}

func (f *fakeAuth) ForgotPassword(ctx context.Context, email string) error {
	f.record("ForgotPassword", email)
	return f.err
}

func (f *fakeAuth) ResetPassword(ctx context.Context, token, password string) (*services.Session, error) {
	f.record("ResetPassword", token, password)
	return f.session, f.err
}

func (f *fakeAuth) ChangePassword(ctx context.Context, accountID, current, next string) (*services.Session, error) {
	f.record("ChangePassword", accountID, current, next)
	return f.session, f.err
}

func (f *fakeAuth) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	f.record("Profile", accountID)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.account, nil
}

func (f *fakeAuth) UpdateName(ctx context.Context, accountID, name string) (*models.Account, error) {
	f.record("UpdateName", accountID, name)
	return f.account, f.err
}

func (f *fakeAuth) DeleteAccount(ctx context.Context, accountID string) error {
	f.record("DeleteAccount", accountID)
	return f.err
}

type fakeSeller struct {
	account  *models.Account
	product  *models.Product
	products []models.Product
	err      error

	calls       []string
	lastProfile services.ProfileInput
	lastOnboard services.OnboardingInput
	lastProduct services.ProductInput
}

func (f *fakeSeller) BecomeSeller(ctx context.Context, accountID string, in services.ProfileInput) (*models.Account, error) {
	f.calls = append(f.calls, "BecomeSeller")
	f.lastProfile = in
	return f.account, f.err
}

func (f *fakeSeller) Onboard(ctx context.Context, accountID string, in services.OnboardingInput) (*services.OnboardResult, error) {
	f.calls = append(f.calls, "Onboard")
	f.lastOnboard = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.OnboardResult{Account: f.account, Product: f.product}, nil
}

func (f *fakeSeller) UpdateSettings(ctx context.Context, accountID string, in services.ProfileInput) (*models.Account, error) {
	f.calls = append(f.calls, "UpdateSettings")
	f.lastProfile = in
	return f.account, f.err
}

func (f *fakeSeller) CreateProduct(ctx context.Context, sellerID string, in services.ProductInput) (*models.Product, error) {
	f.calls = append(f.calls, "CreateProduct")
	f.lastProduct = in
	return f.product, f.err
}

func (f *fakeSeller) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	f.calls = append(f.calls, "ListProducts")
	return f.products, f.err
}

// jwtVerifier verifies access tokens with a real auth.Manager.
type jwtVerifier struct{ m *auth.Manager }

func (v jwtVerifier) VerifyAccess(token string) (*auth.Claims, error) {
	return v.m.Verify(token, auth.KindAccess)
}

type testServer struct {
	srv     *Server
	handler http.Handler
	auth    *fakeAuth
	seller  *fakeSeller
	jwt     *auth.Manager
	metrics *metrics.Manager
}

func newTestJWT(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(map[auth.Kind]auth.KindConfig{
		auth.KindAccess:  {Secret: []byte("access"), Validity: 15 * time.Minute},
		auth.KindRefresh: {Secret: []byte("refresh"), Validity: 7 * 24 * time.Hour},
	})
	require.NoError(t, err)
	return m
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.FrontendURL = "http://front.local"
	cfg.CookieDomain = "petmarket.local"
	cfg.MaxUploadBytes = 1 << 20
	for _, fn := range mutate {
		fn(cfg)
	}

	ts := &testServer{
		auth:    &fakeAuth{},
		seller:  &fakeSeller{},
		jwt:     newTestJWT(t),
		metrics: metrics.NewManager(),
	}
	ts.srv = NewServer(cfg, logging.Nop(), ts.auth, ts.seller, jwtVerifier{ts.jwt}, ts.metrics)
	ts.handler = ts.srv.Handler()
	return ts
}

func (ts *testServer) accessToken(t *testing.T, id string) string {
	t.Helper()
	tok, _, err := ts.jwt.Issue(auth.Subject{UserID: id, Email: id + "@x.com", Role: common.RoleCustomer}, auth.KindAccess)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func testSession(id string) *services.Session {
	return &services.Session{
		Account: &models.Account{ID: id, Email: id + "@x.com", Role: common.RoleCustomer, IsVerified: true, PasswordHash: "secret-hash"},
		Tokens:  &services.TokenPair{AccessToken: "access-" + id, RefreshToken: "refresh-" + id},
	}
}
