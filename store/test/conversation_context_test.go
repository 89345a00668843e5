package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/localchat/store"
)

func TestConversationContextStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	missing, err := ts.GetConversationContext(ctx, &store.FindConversationContext{SessionID: "nobody"})
	require.NoError(t, err)
	require.Nil(t, missing)

	created, err := ts.UpsertConversationContext(ctx, &store.ConversationContext{
		SessionID: "s1",
		Turns:     `[{"user":"Bonjour","bot":"Salut"}]`,
		CreatedTs: 100,
		UpdatedTs: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "s1", created.SessionID)
	require.Equal(t, int64(100), created.CreatedTs)

	updated, err := ts.UpsertConversationContext(ctx, &store.ConversationContext{
		SessionID: "s1",
		Turns:     `[]`,
		CreatedTs: 200,
		UpdatedTs: 200,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), updated.CreatedTs, "created_ts survives an update")
	require.Equal(t, int64(200), updated.UpdatedTs)
	require.JSONEq(t, `[]`, updated.Turns)

	found, err := ts.GetConversationContext(ctx, &store.FindConversationContext{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.JSONEq(t, `[]`, found.Turns)

	sessionID := "s1"
	n, err := ts.DeleteConversationContext(ctx, &store.DeleteConversationContext{SessionID: &sessionID})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	found, err = ts.GetConversationContext(ctx, &store.FindConversationContext{SessionID: "s1"})
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestConversationContextStore_DeleteStale(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	for id, updated := range map[string]int64{"old": 10, "older": 5, "fresh": 1000} {
		_, err := ts.UpsertConversationContext(ctx, &store.ConversationContext{SessionID: id, Turns: "[]", CreatedTs: updated, UpdatedTs: updated})
		require.NoError(t, err)
	}

	cutoff := int64(100)
	n, err := ts.DeleteConversationContext(ctx, &store.DeleteConversationContext{UpdatedBefore: &cutoff})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	fresh, err := ts.GetConversationContext(ctx, &store.FindConversationContext{SessionID: "fresh"})
	require.NoError(t, err)
	require.NotNil(t, fresh)

	_, err = ts.DeleteConversationContext(ctx, &store.DeleteConversationContext{})
	require.Error(t, err)
}
