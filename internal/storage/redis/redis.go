// Package redis stores session state in Redis under a namespace, refreshing
// the TTL on every write so abandoned sessions expire.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-checkout/internal/storage"
)

const keyNamespace = "sf"

var _ storage.KV = (*Store)(nil)

type cmdable interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store is a storage.KV backed by Redis.
type Store struct {
	client cmdable
	raw    *redis.Client
	ttl    time.Duration
}

// Open connects to the Redis server at url and verifies connectivity.
func Open(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Store{client: raw, raw: raw, ttl: ttl}, nil
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, raw: client, ttl: ttl}
}

func (s *Store) key(k string) string {
	return keyNamespace + ":" + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// Ping checks connectivity for the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}
