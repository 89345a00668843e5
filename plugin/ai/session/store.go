package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/localchat/plugin/ai/cache"
	"github.com/hrygo/localchat/plugin/ai/memory"
	"github.com/hrygo/localchat/store"
)

const (
	cachePrefix = "session:"
	cacheTTL    = 30 * time.Minute
)

// sessionStore implements SessionService with database persistence and caching.
type sessionStore struct {
	store *store.Store
	cache cache.CacheService[*ConversationContext]
	now   func() time.Time
}

// NewSessionStore creates a new session store with database and cache.
// cache may be nil.
func NewSessionStore(s *store.Store, cache cache.CacheService[*ConversationContext]) SessionService {
	return &sessionStore{
		store: s,
		cache: cache,
		now:   time.Now,
	}
}

// SaveContext saves the conversation context.
func (s *sessionStore) SaveContext(ctx context.Context, sessionID string, context *ConversationContext) error {
	now := s.now().Unix()
	if context.CreatedAt == 0 {
		context.CreatedAt = now
	}
	context.UpdatedAt = now
	context.SessionID = sessionID

	turns := context.Turns
	if turns == nil {
		turns = []memory.Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}

	saved, err := s.store.UpsertConversationContext(ctx, &store.ConversationContext{
		SessionID: sessionID,
		Turns:     string(data),
		CreatedTs: context.CreatedAt,
		UpdatedTs: context.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	context.CreatedAt = saved.CreatedTs

	s.updateCache(ctx, sessionID, context)

	return nil
}

// LoadContext loads the conversation context.
func (s *sessionStore) LoadContext(ctx context.Context, sessionID string) (*ConversationContext, error) {
	if cached := s.loadFromCache(ctx, sessionID); cached != nil {
		return cached, nil
	}

	raw, err := s.store.GetConversationContext(ctx, &store.FindConversationContext{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}
	if raw == nil {
		return nil, nil // New session
	}

	result := &ConversationContext{
		SessionID: raw.SessionID,
		CreatedAt: raw.CreatedTs,
		UpdatedAt: raw.UpdatedTs,
	}
	if err := json.Unmarshal([]byte(raw.Turns), &result.Turns); err != nil {
		// A corrupt row starts the session over rather than failing every request.
		slog.Warn("failed to unmarshal turns", "session_id", sessionID, "error", err)
		result.Turns = []memory.Turn{}
	}

	s.updateCache(ctx, sessionID, result)

	return result, nil
}

// DeleteSession deletes a session.
func (s *sessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.store.DeleteConversationContext(ctx, &store.DeleteConversationContext{SessionID: &sessionID}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	// Clear cache (idempotent - ok if not exists)
	s.invalidateCache(ctx, cachePrefix+sessionID)

	return nil
}

// CleanupExpired removes sessions idle longer than olderThan.
func (s *sessionStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()

	deleted, err := s.store.DeleteConversationContext(ctx, &store.DeleteConversationContext{UpdatedBefore: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}

	// Cached entries of deleted sessions would otherwise outlive their rows.
	if deleted > 0 {
		s.invalidateCache(ctx, cachePrefix+"*")
	}

	return deleted, nil
}

// updateCache stores a copy of context in cache.
func (s *sessionStore) updateCache(ctx context.Context, sessionID string, context *ConversationContext) {
	if s.cache == nil {
		return
	}

	key := cachePrefix + sessionID
	if err := s.cache.Set(ctx, key, context.Clone(), cacheTTL); err != nil {
		slog.Warn("failed to update cache", "key", key, "error", err)
	}
}

// loadFromCache retrieves a copy of the cached context.
func (s *sessionStore) loadFromCache(ctx context.Context, sessionID string) *ConversationContext {
	if s.cache == nil {
		return nil
	}

	cached, ok := s.cache.Get(ctx, cachePrefix+sessionID)
	if !ok {
		return nil
	}
	return cached.Clone()
}

// invalidateCache removes matching entries from cache.
func (s *sessionStore) invalidateCache(ctx context.Context, pattern string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		slog.Warn("failed to invalidate cache", "pattern", pattern, "error", err)
	}
}

// Ensure sessionStore implements SessionService
var _ SessionService = (*sessionStore)(nil)
