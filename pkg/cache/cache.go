// Package cache defines the injected caching capability used by read-mostly
// endpoints. Callers own TTL choice and invalidation keys; implementations
// own nothing beyond storage, so ambient global caches never reappear.
package cache

import (
	"context"
	"time"

	"lendgate/pkg/sentinel"
)

// Cache is a byte-oriented key/value cache with explicit TTL and
// invalidation by key or pattern.
type Cache interface {
	// Get returns the cached value or sentinel.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes one key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error
	// InvalidatePattern removes every key matching a glob-style pattern,
	// e.g. "batch:user-1:*".
	InvalidatePattern(ctx context.Context, pattern string) error
}

// ErrMiss aliases the sentinel so callers can errors.Is without importing
// both packages.
var ErrMiss = sentinel.ErrNotFound
