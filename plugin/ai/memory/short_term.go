// Package memory holds the short-term conversation history of a chat session.
package memory

import (
	"sync"
)

// Turn is one user message paired with the reply generated for it.
// Turns are values and are never modified once recorded.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// ConversationStore keeps the most recent turns of one session, oldest first.
// It never holds more than its limit; a limit of zero or less disables it.
type ConversationStore struct {
	mu    sync.RWMutex
	turns []Turn
	limit int
}

// NewConversationStore creates an empty store bounded to limit turns.
func NewConversationStore(limit int) *ConversationStore {
	s := &ConversationStore{limit: limit}
	if s.Enabled() {
		s.turns = make([]Turn, 0, limit)
	}
	return s
}

// NewConversationStoreFrom rehydrates a store from persisted turns.
// The result is the same as appending every turn in order.
func NewConversationStoreFrom(limit int, turns []Turn) *ConversationStore {
	s := NewConversationStore(limit)
	if !s.Enabled() {
		return s
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	s.turns = append(s.turns, turns...)
	return s
}

// Append records a turn at the end, evicting the oldest turns beyond the limit.
func (s *ConversationStore) Append(turn Turn) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.limit; over > 0 {
		// Copy down so the evicted turns do not stay reachable from the backing array.
		n := copy(s.turns, s.turns[over:])
		clear(s.turns[n:])
		s.turns = s.turns[:n]
	}
}

// Reset drops every turn. Calling it on an empty store is a no-op.
func (s *ConversationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.turns)
	s.turns = s.turns[:0]
}

// Snapshot returns a copy of the turns in chronological order.
func (s *ConversationStore) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Turn, len(s.turns))
	copy(result, s.turns)
	return result
}

// Len returns the number of stored turns.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Limit returns the configured maximum number of turns.
func (s *ConversationStore) Limit() int {
	return s.limit
}

// Enabled reports whether the store records history at all.
func (s *ConversationStore) Enabled() bool {
	return s.limit > 0
}
