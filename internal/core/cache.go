package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key.
	// Returns true if the key exists and TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	// This is useful for implementing distributed locks and deduplication.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// PageCacheService caches fetched page bodies keyed by canonical URL so that
// retried jobs and overlapping crawls do not refetch the same page. Entries
// expire on TTL; ingestion correctness never depends on a hit.
type PageCacheService struct {
	cache CacheRepository
	ttl   time.Duration
}

// PageCacheConfig holds configuration for page body caching.
type PageCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// PageCacheServiceOptions bundles dependencies for NewPageCacheService.
type PageCacheServiceOptions struct {
	Cache  CacheRepository
	Config PageCacheConfig
}

// DefaultPageCacheConfig returns a PageCacheConfig with sensible defaults.
func DefaultPageCacheConfig() PageCacheConfig {
	return PageCacheConfig{
		TTL: 15 * time.Minute,
	}
}

// NewPageCacheService creates a new PageCacheService.
func NewPageCacheService(opts PageCacheServiceOptions) *PageCacheService {
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultPageCacheConfig().TTL
	}
	return &PageCacheService{
		cache: opts.Cache,
		ttl:   ttl,
	}
}

// GetPage retrieves a cached page body for a canonical URL.
// Returns nil if not cached.
func (s *PageCacheService) GetPage(ctx context.Context, canonicalURL string) ([]byte, error) {
	if s == nil || s.cache == nil || canonicalURL == "" {
		return nil, nil
	}
	return s.cache.Get(ctx, pageBodyKey(canonicalURL))
}

// PutPage stores a fetched page body for a canonical URL.
func (s *PageCacheService) PutPage(ctx context.Context, canonicalURL string, body []byte) error {
	if s == nil || s.cache == nil || canonicalURL == "" || len(body) == 0 {
		return nil
	}
	return s.cache.Set(ctx, pageBodyKey(canonicalURL), body, s.ttl)
}

// InvalidatePage removes the cached body for a canonical URL.
func (s *PageCacheService) InvalidatePage(ctx context.Context, canonicalURL string) error {
	if s == nil || s.cache == nil || canonicalURL == "" {
		return nil
	}
	_, err := s.cache.Delete(ctx, pageBodyKey(canonicalURL))
	return err
}

// pageBodyKey hashes the canonical URL; raw URLs can exceed practical key
// lengths and may contain characters the keyspace convention excludes.
func pageBodyKey(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return "page:body:" + hex.EncodeToString(sum[:])
}
