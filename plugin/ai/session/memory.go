package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps sessions in process. History does not survive a restart.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*ConversationContext
	now      func() time.Time
}

// NewMemoryStore creates a SessionService without persistence.
func NewMemoryStore() SessionService {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions: make(map[string]*ConversationContext),
		now:      time.Now,
	}
}

func (m *memoryStore) SaveContext(_ context.Context, sessionID string, context *ConversationContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	if existing, ok := m.sessions[sessionID]; ok {
		context.CreatedAt = existing.CreatedAt
	} else if context.CreatedAt == 0 {
		context.CreatedAt = now
	}
	context.UpdatedAt = now
	context.SessionID = sessionID

	m.sessions[sessionID] = context.Clone()
	return nil
}

func (m *memoryStore) LoadContext(_ context.Context, sessionID string) (*ConversationContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sessions[sessionID].Clone(), nil
}

func (m *memoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *memoryStore) CleanupExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-olderThan).Unix()
	var deleted int64
	for id, c := range m.sessions {
		if c.UpdatedAt < cutoff {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ SessionService = (*memoryStore)(nil)
