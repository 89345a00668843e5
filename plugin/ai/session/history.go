package session

import (
	"context"
	"fmt"

	"github.com/hrygo/localchat/plugin/ai/memory"
)

// History moves turns between a SessionService and the bounded
// ConversationStore a chat request works on.
type History struct {
	sessionSvc SessionService
	limit      int
}

// NewHistory creates a History keeping at most limit turns per session.
// A limit of zero or less disables history; nothing is read or written.
func NewHistory(sessionSvc SessionService, limit int) *History {
	return &History{
		sessionSvc: sessionSvc,
		limit:      limit,
	}
}

// Limit returns the maximum number of turns kept per session.
func (h *History) Limit() int {
	return h.limit
}

// Recover returns the session's turns as a ConversationStore.
// A new session gets an empty store.
func (h *History) Recover(ctx context.Context, sessionID string) (*memory.ConversationStore, error) {
	if h.limit <= 0 {
		return memory.NewConversationStore(h.limit), nil
	}

	existing, err := h.sessionSvc.LoadContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if existing == nil {
		return memory.NewConversationStore(h.limit), nil
	}
	return memory.NewConversationStoreFrom(h.limit, existing.Turns), nil
}

// Record appends turn to conv and saves the result.
func (h *History) Record(ctx context.Context, sessionID string, conv *memory.ConversationStore, turn memory.Turn) error {
	if !conv.Enabled() {
		return nil
	}

	conv.Append(turn)
	if err := h.sessionSvc.SaveContext(ctx, sessionID, &ConversationContext{Turns: conv.Snapshot()}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Turns returns the session's turns, oldest first.
func (h *History) Turns(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	conv, err := h.Recover(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return conv.Snapshot(), nil
}

// Reset forgets the session's turns. Resetting an unknown session is a no-op.
func (h *History) Reset(ctx context.Context, sessionID string) error {
	if err := h.sessionSvc.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}
