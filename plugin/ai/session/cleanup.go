package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSessionTTL is how long an idle session is kept.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = time.Hour
)

// CleanupConfig holds configuration for the cleanup job.
type CleanupConfig struct {
	SessionTTL      time.Duration // Idle time after which a session is deleted (default: 24h)
	CleanupInterval time.Duration // Interval between cleanup runs (default: 1h)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		SessionTTL:      DefaultSessionTTL,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// SessionCleanupJob handles periodic cleanup of expired sessions.
type SessionCleanupJob struct {
	sessionSvc SessionService
	config     CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewSessionCleanupJob creates a new cleanup job.
func NewSessionCleanupJob(svc SessionService, config CleanupConfig) *SessionCleanupJob {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	return &SessionCleanupJob{
		sessionSvc: svc,
		config:     config,
	}
}

// Start begins the periodic cleanup job.
// This method is non-blocking and starts the cleanup in a goroutine.
func (j *SessionCleanupJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return nil // Already running
	}

	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx, j.stopChan)

	slog.Info("session cleanup job started",
		"session_ttl", j.config.SessionTTL,
		"interval", j.config.CleanupInterval)

	return nil
}

// Stop stops the cleanup job.
func (j *SessionCleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}

	close(j.stopChan)
	j.running = false

	slog.Info("session cleanup job stopped")
}

// RunOnce executes a single cleanup run immediately.
// Useful for testing or manual cleanup.
func (j *SessionCleanupJob) RunOnce(ctx context.Context) (int64, error) {
	return j.cleanup(ctx)
}

// run is the main loop for the cleanup job.
func (j *SessionCleanupJob) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	// Run immediately on start
	if deleted, err := j.cleanup(ctx); err != nil {
		slog.Error("initial session cleanup failed", "error", err)
	} else if deleted > 0 {
		slog.Info("initial session cleanup completed", "deleted", deleted)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if deleted, err := j.cleanup(ctx); err != nil {
				slog.Error("session cleanup failed", "error", err)
			} else if deleted > 0 {
				slog.Info("session cleanup completed", "deleted", deleted)
			}
		}
	}
}

// cleanup performs the actual cleanup.
func (j *SessionCleanupJob) cleanup(ctx context.Context) (int64, error) {
	return j.sessionSvc.CleanupExpired(ctx, j.config.SessionTTL)
}

// IsRunning returns whether the cleanup job is currently running.
func (j *SessionCleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
