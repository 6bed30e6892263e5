// Package resultcache maps a configuration's identity hash to its
// computed simulation output, so repeated identical requests from an
// interactive frontend are served without recomputation.
package resultcache

import (
	"context"
	"errors"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMiss is the miss sentinel, distinct from any legitimately empty
// cached value.
var ErrMiss = errors.New("resultcache: miss")

// Default TTLs: recomputing a result is cheap once price data is warm,
// so results track the price-data hour; derived summaries are stable
// for longer.
const (
	ResultTTL  = time.Hour
	SummaryTTL = 6 * time.Hour
)

// Store is the backing key-value contract: opaque bytes per key with an
// expiration.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrMiss when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore backs the cache with Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects lazily; an unreachable server surfaces per
// operation and is absorbed by the fallback, never by the caller.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewRedisStoreFromClient wraps an existing client (used by tests).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Cache is the read-through configuration cache: a primary backing
// store with a bounded in-process fallback. Backing-store outages are
// logged and downgraded, never surfaced.
type Cache struct {
	primary  Store
	fallback *MemoryStore
}

// New builds a cache over primary. A nil primary runs fallback-only.
func New(primary Store) *Cache {
	return &Cache{primary: primary, fallback: NewMemoryStore(DefaultMaxEntries)}
}

// Get returns the cached bytes for key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.primary != nil {
		b, err := c.primary.Get(ctx, key)
		if err == nil {
			return b, nil
		}
		if err == ErrMiss {
			return nil, ErrMiss
		}
		log.Warn().Err(err).Str("key", key).Msg("result cache store unreachable, using fallback")
	}
	if b, ok := c.fallback.Get(key); ok {
		return b, nil
	}
	return nil, ErrMiss
}

// Set writes the value under key with the given TTL. When the primary
// store is down the write lands in the bounded fallback.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.primary != nil {
		err := c.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("key", key).Msg("result cache write failed, using fallback")
	}
	c.fallback.Set(key, value, ttl)
}

// GetInto reads and msgpack-decodes the value for key into v.
func (c *Cache) GetInto(ctx context.Context, key string, v interface{}) error {
	b, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(b, v); err != nil {
		// A value we cannot decode is as good as absent.
		log.Warn().Err(err).Str("key", key).Msg("undecodable cached result")
		return ErrMiss
	}
	return nil
}

// SetFrom msgpack-encodes v and stores it under key.
func (c *Cache) SetFrom(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to encode result for cache")
		return
	}
	c.Set(ctx, key, b, ttl)
}
