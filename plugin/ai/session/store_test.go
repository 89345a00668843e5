package session

import (
	"context"
	"testing"
	"time"

	"github.com/hrygo/localchat/plugin/ai/cache"
	"github.com/hrygo/localchat/plugin/ai/memory"
	storetest "github.com/hrygo/localchat/store/test"
)

func newTestSessionStore(t *testing.T, withCache bool) *sessionStore {
	t.Helper()
	s := storetest.NewTestingStore(context.Background(), t)

	var c cache.CacheService[*ConversationContext]
	if withCache {
		svc := cache.NewService[*ConversationContext](cache.ServiceConfig{Name: "session-test", Capacity: 16})
		t.Cleanup(svc.Close)
		c = svc
	}
	return NewSessionStore(s, c).(*sessionStore)
}

func TestSessionStore(t *testing.T) {
	t.Run("uncached", func(t *testing.T) {
		testSessionServiceContract(t, newTestSessionStore(t, false))
	})
	t.Run("cached", func(t *testing.T) {
		testSessionServiceContract(t, newTestSessionStore(t, true))
	})
}

func TestSessionStore_CreatedAtSurvivesUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t, false)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	if err := s.SaveContext(ctx, "s", &ConversationContext{}); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}

	now = now.Add(time.Minute)
	if err := s.SaveContext(ctx, "s", &ConversationContext{Turns: []memory.Turn{{User: "u", Bot: "b"}}}); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}

	loaded, err := s.LoadContext(ctx, "s")
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if loaded.CreatedAt != 1_700_000_000 {
		t.Errorf("expected created_at to be kept, got %d", loaded.CreatedAt)
	}
	if loaded.UpdatedAt != 1_700_000_060 {
		t.Errorf("expected updated_at to move, got %d", loaded.UpdatedAt)
	}
}

func TestSessionStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t, true)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	s.SaveContext(ctx, "old", &ConversationContext{})

	now = now.Add(48 * time.Hour)
	s.SaveContext(ctx, "recent", &ConversationContext{})

	deleted, err := s.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	// The cached copy must not resurrect the deleted row.
	if loaded, _ := s.LoadContext(ctx, "old"); loaded != nil {
		t.Error("old session should be deleted")
	}
	if loaded, _ := s.LoadContext(ctx, "recent"); loaded == nil {
		t.Error("recent session should survive")
	}
}
