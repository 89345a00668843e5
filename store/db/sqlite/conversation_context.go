package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/localchat/store"
)

func (d *DB) UpsertConversationContext(ctx context.Context, upsert *store.ConversationContext) (*store.ConversationContext, error) {
	now := time.Now().Unix()
	if upsert.UpdatedTs == 0 {
		upsert.UpdatedTs = now
	}
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = upsert.UpdatedTs
	}

	stmt := `INSERT INTO conversation_context (session_id, turns, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (session_id) DO UPDATE SET
			turns = EXCLUDED.turns,
			updated_ts = EXCLUDED.updated_ts
		RETURNING session_id, turns, created_ts, updated_ts`

	result := &store.ConversationContext{}
	err := d.db.QueryRowContext(ctx, stmt, upsert.SessionID, upsert.Turns, upsert.CreatedTs, upsert.UpdatedTs).Scan(
		&result.SessionID,
		&result.Turns,
		&result.CreatedTs,
		&result.UpdatedTs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert conversation_context: %w", err)
	}
	return result, nil
}

func (d *DB) GetConversationContext(ctx context.Context, find *store.FindConversationContext) (*store.ConversationContext, error) {
	if find.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := `SELECT session_id, turns, created_ts, updated_ts FROM conversation_context WHERE session_id = ` + placeholder(1)

	result := &store.ConversationContext{}
	err := d.db.QueryRowContext(ctx, query, find.SessionID).Scan(
		&result.SessionID,
		&result.Turns,
		&result.CreatedTs,
		&result.UpdatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation_context: %w", err)
	}
	return result, nil
}

func (d *DB) DeleteConversationContext(ctx context.Context, delete *store.DeleteConversationContext) (int64, error) {
	where, args := []string{}, []any{}
	if v := delete.SessionID; v != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.UpdatedBefore; v != nil {
		where, args = append(where, "updated_ts < "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("refusing to delete every conversation_context")
	}

	result, err := d.db.ExecContext(ctx, "DELETE FROM conversation_context WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversation_context: %w", err)
	}
	return result.RowsAffected()
}
