// Package session persists the conversation history of chat sessions.
package session

import (
	"context"
	"time"

	"github.com/hrygo/localchat/plugin/ai/memory"
)

// SessionService defines the session persistence service interface.
type SessionService interface {
	// SaveContext saves the conversation context.
	SaveContext(ctx context.Context, sessionID string, context *ConversationContext) error

	// LoadContext loads the conversation context.
	// Returns nil without error for a session that has none.
	LoadContext(ctx context.Context, sessionID string) (*ConversationContext, error)

	// DeleteSession deletes a session. Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// CleanupExpired deletes sessions not updated within olderThan.
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ConversationContext is the persisted state of one session.
type ConversationContext struct {
	SessionID string        `json:"session_id"`
	Turns     []memory.Turn `json:"turns"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

// Clone returns a deep copy, so callers never share turn slices with a cache.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Turns = append([]memory.Turn(nil), c.Turns...)
	return &clone
}
