package store

import "context"

// ConversationContext is the persisted history of one chat session.
type ConversationContext struct {
	SessionID string
	// Turns is the JSON encoded turn list.
	Turns     string
	CreatedTs int64
	UpdatedTs int64
}

type FindConversationContext struct {
	SessionID string
}

// DeleteConversationContext deletes by session id, or every context last
// updated before UpdatedBefore when SessionID is nil.
type DeleteConversationContext struct {
	SessionID     *string
	UpdatedBefore *int64
}

func (s *Store) UpsertConversationContext(ctx context.Context, upsert *ConversationContext) (*ConversationContext, error) {
	return s.driver.UpsertConversationContext(ctx, upsert)
}

// GetConversationContext returns nil when the session has no stored context.
func (s *Store) GetConversationContext(ctx context.Context, find *FindConversationContext) (*ConversationContext, error) {
	return s.driver.GetConversationContext(ctx, find)
}

func (s *Store) DeleteConversationContext(ctx context.Context, delete *DeleteConversationContext) (int64, error) {
	return s.driver.DeleteConversationContext(ctx, delete)
}
