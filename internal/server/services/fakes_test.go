package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
	"github.com/dmitrijs2005/petmarket/internal/server/metrics"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/pending"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/products"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/petmarket/internal/server/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- in-memory repositories ---

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	products []models.Product
	refresh  map[string]refreshRow

	productErr error
	lookupErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]models.Account{},
		refresh:  map[string]refreshRow{},
	}
}

type snapshot struct {
	Accounts map[string]models.Account
	Products []models.Product
}

func (s *fakeStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := make(map[string]models.Account, len(s.accounts))
	for k, v := range s.accounts {
		acc[k] = v
	}
	return snapshot{Accounts: acc, Products: append([]models.Product(nil), s.products...)}
}

func (s *fakeStore) account(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

type fakeAccounts struct{ st *fakeStore }

func (f *fakeAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, existing := range f.st.accounts {
		if existing.Email == a.Email {
			return nil, common.ErrEmailTaken
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.st.accounts[a.ID] = *a
	return a, nil
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if f.st.lookupErr != nil {
		return nil, f.st.lookupErr
	}
	for _, a := range f.st.accounts {
		if a.Email == email {
			out := a
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if f.st.lookupErr != nil {
		return nil, f.st.lookupErr
	}
	a, ok := f.st.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (f *fakeAccounts) update(id string, fn func(a *models.Account) bool) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	a, ok := f.st.accounts[id]
	if !ok || !fn(&a) {
		return common.ErrorNotFound
	}
	a.UpdatedAt = time.Now()
	f.st.accounts[id] = a
	return nil
}

func (f *fakeAccounts) UpdateSellerProfile(ctx context.Context, id string, p models.SellerProfile) error {
	return f.update(id, func(a *models.Account) bool {
		a.SellerProfile = p
		a.IsSeller = true
		a.Role = common.RoleSeller
		return true
	})
}

func (f *fakeAccounts) UpdateSellerSettings(ctx context.Context, id string, p models.SellerProfile) error {
	return f.update(id, func(a *models.Account) bool {
		if !a.IsSeller {
			return false
		}
		brand, doc := a.BrandImageURL, a.VerificationDocURL
		a.SellerProfile = p
		if p.BrandImageURL == "" {
			a.BrandImageURL = brand
		}
		if p.VerificationDocURL == "" {
			a.VerificationDocURL = doc
		}
		return true
	})
}

func (f *fakeAccounts) UpdatePassword(ctx context.Context, id string, hash string) error {
	return f.update(id, func(a *models.Account) bool { a.PasswordHash = hash; return true })
}

func (f *fakeAccounts) UpdateName(ctx context.Context, id string, name string) error {
	return f.update(id, func(a *models.Account) bool { a.Name = name; return true })
}

func (f *fakeAccounts) Delete(ctx context.Context, id string) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.st.accounts, id)
	delete(f.st.refresh, id)
	kept := f.st.products[:0]
	for _, p := range f.st.products {
		if p.SellerID != id {
			kept = append(kept, p)
		}
	}
	f.st.products = kept
	return nil
}

type fakeProducts struct{ st *fakeStore }

func (f *fakeProducts) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if f.st.productErr != nil {
		return nil, f.st.productErr
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	f.st.products = append(f.st.products, *p)
	return p, nil
}

func (f *fakeProducts) ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.st.products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type refreshRow struct {
	hash    string
	expires time.Time
}

type fakeRefresh struct{ st *fakeStore }

func (f *fakeRefresh) Upsert(ctx context.Context, userID, hash string, expires time.Time) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.refresh[userID] = refreshRow{hash: hash, expires: expires}
	return nil
}

func (st *fakeStore) storedRefresh(userID string) (refreshRow, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	rt, ok := st.refresh[userID]
	return rt, ok
}

func (f *fakeRefresh) Rotate(ctx context.Context, userID, oldHash, newHash string, expires time.Time) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	rt, ok := f.st.refresh[userID]
	if !ok || rt.hash != oldHash || !rt.expires.After(time.Now()) {
		return common.ErrorUnauthorized
	}
	f.st.refresh[userID] = refreshRow{hash: newHash, expires: expires}
	return nil
}

func (f *fakeRefresh) Delete(ctx context.Context, userID string) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	delete(f.st.refresh, userID)
	return nil
}

type fakeRepoManager struct{ st *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository {
	return &fakeAccounts{m.st}
}

func (m *fakeRepoManager) Products(db dbx.DBTX) products.Repository {
	return &fakeProducts{m.st}
}

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &fakeRefresh{m.st}
}

// --- collaborators ---

type sentMail struct{ to, subject, html string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return nil
}

var (
	verifyLinkRe = regexp.MustCompile(`/verify-email/([A-Za-z0-9_\-.]+)`)
	resetLinkRe  = regexp.MustCompile(`token=([A-Za-z0-9_\-.]+)`)
)

func (m *fakeMailer) lastToken(t *testing.T, re *regexp.Regexp) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email sent")
	match := re.FindStringSubmatch(m.sent[len(m.sent)-1].html)
	require.Len(t, match, 2, "no token link in email")
	return match[1]
}

type fakeStorage struct {
	mu   sync.Mutex
	puts []string
	err  error
}

func (s *fakeStorage) Put(ctx context.Context, field string, f storage.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	url := "http://s3.local/petmarket/" + field + "/" + f.Name
	s.puts = append(s.puts, url)
	return url, nil
}

type published struct {
	subject string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject, payload})
	return p.err
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

// --- harness ---

type harness struct {
	db      *sql.DB
	store   *fakeStore
	redis   *miniredis.Miniredis
	mailer  *fakeMailer
	storage *fakeStorage
	events  *fakePublisher
	metrics *metrics.Manager
	jwt     *auth.Manager
	tokens  *TokenService
	auth    *AuthService
	seller  *SellerService
}

func newTestJWT(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(map[auth.Kind]auth.KindConfig{
		auth.KindAccess:            {Secret: []byte("access"), Validity: 15 * time.Minute},
		auth.KindRefresh:           {Secret: []byte("refresh"), Validity: 7 * 24 * time.Hour},
		auth.KindEmailVerification: {Secret: []byte("verify"), Validity: 24 * time.Hour},
		auth.KindPasswordReset:     {Secret: []byte("reset"), Validity: time.Hour},
	})
	require.NoError(t, err)
	return m
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	// a real *sql.DB so dbx.WithTx can begin and commit; the fakes ignore it
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	h := &harness{
		db:      db,
		store:   newFakeStore(),
		redis:   mr,
		mailer:  &fakeMailer{},
		storage: &fakeStorage{},
		events:  &fakePublisher{},
		metrics: metrics.NewManager(),
		jwt:     newTestJWT(t),
	}
	rm := &fakeRepoManager{h.store}
	h.tokens = NewTokenService(db, rm, h.jwt)

	deps := Deps{
		DB:      db,
		Repos:   rm,
		Tokens:  h.tokens,
		JWT:     h.jwt,
		Pending: pending.NewRedisStore(rc),
		Mailer:  h.mailer,
		Events:  h.events,
		Metrics: h.metrics,
		Log:     logging.Nop(),
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	h.auth = NewAuthService(deps, cfg)
	h.seller = NewSellerService(deps, h.storage)
	return h
}

// signupAndVerify registers an account through the public flow.
func (h *harness) signupAndVerify(t *testing.T, email, plain string) *Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.auth.Signup(ctx, SignupInput{Name: "Ann", Email: email, Password: plain}))
	session, err := h.auth.VerifyEmail(ctx, h.mailer.lastToken(t, verifyLinkRe))
	require.NoError(t, err)
	return session
}

var errBoom = errors.New("boom")
