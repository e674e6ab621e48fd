package pending

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestPutTake_RoundTrip(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	rec := models.PendingSignup{Email: "a@x.com", PasswordHash: "hash", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	require.NoError(t, s.Put(ctx, KindSignup, "abc", rec, time.Hour))

	assert.True(t, mr.Exists("pm:signup:abc"))
	assert.Equal(t, time.Hour, mr.TTL("pm:signup:abc"))

	var got models.PendingSignup
	require.NoError(t, s.Take(ctx, KindSignup, "abc", &got))
	assert.Equal(t, rec.Email, got.Email)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
}

func TestTake_IsSingleUse(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, KindPasswordReset, "tok", models.PasswordReset{UserID: "u-1"}, time.Hour))

	var first models.PasswordReset
	require.NoError(t, s.Take(ctx, KindPasswordReset, "tok", &first))
	assert.Equal(t, "u-1", first.UserID)

	var second models.PasswordReset
	assert.ErrorIs(t, s.Take(ctx, KindPasswordReset, "tok", &second), common.ErrorNotFound)
}

func TestTake_ExpiredByTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, KindSignup, "old", models.PendingSignup{Email: "a@x.com"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got models.PendingSignup
	assert.ErrorIs(t, s.Take(ctx, KindSignup, "old", &got), common.ErrorNotFound)
}

func TestKindsAreSeparateNamespaces(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, KindSignup, "same", models.PendingSignup{Email: "a@x.com"}, time.Hour))

	var reset models.PasswordReset
	assert.ErrorIs(t, s.Take(ctx, KindPasswordReset, "same", &reset), common.ErrorNotFound)
}

func TestPut_RejectsNonPositiveTTL(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.Put(context.Background(), KindSignup, "x", struct{}{}, 0))
}

func TestRedisFailureIsWrapped(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()

	err := s.Put(context.Background(), KindSignup, "x", struct{}{}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis error")
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	c, err := NewClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	_ = c.Close()

	mr.Close()
	_, err = NewClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
