package session

import (
	"context"
	"testing"
	"time"
)

func TestSessionCleanupJob(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSessionCleanupJob_DefaultConfig", func(t *testing.T) {
		job := NewSessionCleanupJob(NewMemoryStore(), CleanupConfig{})

		if job.config.SessionTTL != DefaultSessionTTL {
			t.Errorf("expected default session TTL %v, got %v", DefaultSessionTTL, job.config.SessionTTL)
		}
		if job.config.CleanupInterval != DefaultCleanupInterval {
			t.Errorf("expected default cleanup interval %v, got %v", DefaultCleanupInterval, job.config.CleanupInterval)
		}
	})

	t.Run("RunOnce_CleansExpiredSessions", func(t *testing.T) {
		m := newMemoryStore()
		now := time.Now()
		m.now = func() time.Time { return now }
		m.SaveContext(ctx, "old-session", &ConversationContext{})

		now = now.Add(48 * time.Hour)
		m.SaveContext(ctx, "recent-session", &ConversationContext{})

		job := NewSessionCleanupJob(m, CleanupConfig{SessionTTL: 24 * time.Hour})
		deleted, err := job.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("expected 1 deleted, got %d", deleted)
		}
		if loaded, _ := m.LoadContext(ctx, "old-session"); loaded != nil {
			t.Error("old session should be deleted")
		}
	})

	t.Run("Start_Stop", func(t *testing.T) {
		job := NewSessionCleanupJob(NewMemoryStore(), CleanupConfig{CleanupInterval: 10 * time.Millisecond})

		if err := job.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if !job.IsRunning() {
			t.Error("expected job to be running")
		}
		// Starting twice is a no-op.
		if err := job.Start(ctx); err != nil {
			t.Fatalf("second Start failed: %v", err)
		}

		job.Stop()
		if job.IsRunning() {
			t.Error("expected job to be stopped")
		}
		job.Stop()

		// The job can be restarted after a stop.
		if err := job.Start(ctx); err != nil {
			t.Fatalf("restart failed: %v", err)
		}
		job.Stop()
	})
}
