// Package cache provides an in-process LRU cache with TTL expiry.
package cache

import (
	"context"
	"time"
)

// CacheService defines the cache service interface.
type CacheService[V any] interface {
	// Get retrieves a value from cache.
	// Returns: value, whether it exists
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value in cache.
	// ttl: expiration time, zero uses the default
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Invalidate invalidates cache entries.
	// pattern: exact key, or a prefix ending in * (session:*)
	Invalidate(ctx context.Context, pattern string) error
}
