package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEmptyCacheKey = errors.New("cache key cannot be empty")

// RedisCacheRepo backs core.CacheRepository with Redis. The ingestion
// pipeline keeps two keyspaces here: "page:body:*" for fetched page bodies
// and "crawl:seen:*" for crawl deduplication markers. Both are disposable;
// losing the cache only costs refetches.
type RedisCacheRepo struct {
	client redis.UniversalClient
}

func NewRedisCacheRepo(client redis.UniversalClient) *RedisCacheRepo {
	return &RedisCacheRepo{client: client}
}

// Set stores value under key with the given TTL. A zero TTL never expires.
func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errEmptyCacheKey
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value for key, or nil when the key is absent or expired.
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyCacheKey
	}
	result, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return result, nil
}

// Delete removes key and reports whether it existed.
func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyCacheKey
	}
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (r *RedisCacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyCacheKey
	}
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// SetTTL replaces the TTL on an existing key. False means the key is gone.
func (r *RedisCacheRepo) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errEmptyCacheKey
	}
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire: %w", err)
	}
	return ok, nil
}

// SetIfNotExists sets key only when absent, in one round trip. The crawl
// controller leans on this for its seen-set: two workers racing on the same
// dedup key must not both win. SET NX with a TTL is atomic server-side;
// SETNX followed by EXPIRE is not, which is why it is avoided here.
func (r *RedisCacheRepo) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errEmptyCacheKey
	}
	if ttl <= 0 {
		// A dedup marker without expiry would pin a URL forever.
		ttl = time.Second
	}

	status, err := r.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if errors.Is(err, redis.Nil) {
		// Nil reply means the NX condition failed: the key already exists.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set nx: %w", err)
	}
	return status == "OK", nil
}

// Health pings the server.
func (r *RedisCacheRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
