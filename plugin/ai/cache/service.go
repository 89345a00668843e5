package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Name            string        // Used in log lines
	Capacity        int           // Maximum number of entries (default: 1000)
	DefaultTTL      time.Duration // Default TTL for entries (default: 5 minutes)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 1 minute)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:            "cache",
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Service implements CacheService with LRU eviction and a background sweep
// of expired entries.
type Service[V any] struct {
	lru  *LRUCache[V]
	name string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupInterval time.Duration
}

// NewService creates a new cache service and starts its cleanup loop.
func NewService[V any](cfg ServiceConfig) *Service[V] {
	def := DefaultServiceConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service[V]{
		lru:             NewLRUCache[V](cfg.Capacity, cfg.DefaultTTL),
		name:            cfg.Name,
		ctx:             ctx,
		cancel:          cancel,
		cleanupInterval: cfg.CleanupInterval,
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Close stops the cleanup loop. It is safe to call more than once.
func (s *Service[V]) Close() {
	s.cancel()
	s.wg.Wait()
}

// Get retrieves a value from cache.
func (s *Service[V]) Get(_ context.Context, key string) (V, bool) {
	return s.lru.Get(key)
}

// Set stores a value in cache.
func (s *Service[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	return nil
}

// Invalidate invalidates cache entries matching the pattern.
func (s *Service[V]) Invalidate(_ context.Context, pattern string) error {
	s.lru.Invalidate(pattern)
	return nil
}

// GetOrCreate returns the cached value for key, storing create() on a miss.
func (s *Service[V]) GetOrCreate(key string, create func() V) V {
	return s.lru.GetOrCreate(key, create)
}

// Size returns the number of entries in the cache.
func (s *Service[V]) Size() int {
	return s.lru.Size()
}

// Stats returns usage counters.
func (s *Service[V]) Stats() Stats {
	return s.lru.Stats()
}

// Clear removes all entries from the cache.
func (s *Service[V]) Clear() {
	s.lru.Clear()
}

// cleanupLoop periodically removes expired entries.
func (s *Service[V]) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.lru.CleanupExpired(); n > 0 {
				slog.Debug("cache entries expired", "cache", s.name, "removed", n)
			}
		}
	}
}

// Ensure Service implements CacheService
var _ CacheService[string] = (*Service[string])(nil)
