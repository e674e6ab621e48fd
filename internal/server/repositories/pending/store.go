// Package pending keeps short-lived, single-use records (unverified signups,
// password resets) in Redis, keyed by the hash of the token that claims them.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pm"

// Kind separates record namespaces.
type Kind string

const (
	KindSignup        Kind = "signup"
	KindPasswordReset Kind = "reset"
)

// Store persists a record until it is taken or its TTL runs out.
type Store interface {
	Put(ctx context.Context, kind Kind, tokenHash string, record any, ttl time.Duration) error
	// Take atomically reads and deletes the record into out.
	// A missing or already consumed record yields common.ErrorNotFound.
	Take(ctx context.Context, kind Kind, tokenHash string, out any) error
}

// RedisStore implements Store with SET EX and GETDEL.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func key(kind Kind, tokenHash string) string {
	return keyPrefix + ":" + string(kind) + ":" + tokenHash
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, tokenHash string, record any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("pending: non-positive ttl %s", ttl)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("pending: encode: %w", err)
	}

	if err := s.client.Set(ctx, key(kind, tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, kind Kind, tokenHash string, out any) error {
	data, err := s.client.GetDel(ctx, key(kind, tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("redis error: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("pending: decode: %w", err)
	}
	return nil
}

const dialTimeout = 5 * time.Second

// NewClient opens a Redis client and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(dialCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
