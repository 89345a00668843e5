// Package chat serves the chat endpoints: one message in, one cleaned reply out.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/localchat/plugin/ai"
	aicontext "github.com/hrygo/localchat/plugin/ai/context"
	"github.com/hrygo/localchat/plugin/ai/memory"
	"github.com/hrygo/localchat/plugin/ai/session"
	"github.com/hrygo/localchat/plugin/markdown"
	chaterrors "github.com/hrygo/localchat/server/internal/errors"
	"github.com/hrygo/localchat/server/internal/observability"
)

const (
	OperationChat    = "chat"
	OperationReset   = "reset"
	OperationHistory = "history"
)

// Reply is the outcome of one chat request.
type Reply struct {
	Text string
	// HTML is Text rendered as markdown; empty if rendering failed.
	HTML   string
	Prompt *aicontext.Prompt
}

// Service runs the chat flow against an inference engine.
type Service struct {
	engine  ai.Engine
	builder aicontext.ContextBuilder
	cleaner *aicontext.ResponseCleaner
	history *session.History
	metrics *observability.Metrics

	// slots bounds in-flight engine calls; locks serializes each session.
	slots *semaphore.Weighted
	locks *keyedMutex
}

// Config configures the chat service.
type Config struct {
	Format        aicontext.PromptFormat
	MaxConcurrent int
}

// NewService creates a chat service. metrics may be nil.
func NewService(engine ai.Engine, builder aicontext.ContextBuilder, history *session.History, metrics *observability.Metrics, cfg Config) *Service {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if metrics == nil {
		metrics = observability.NewMetrics(0)
	}
	return &Service{
		engine:  engine,
		builder: builder,
		cleaner: aicontext.NewResponseCleaner(cfg.Format),
		history: history,
		metrics: metrics,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		locks:   newKeyedMutex(),
	}
}

// Metrics returns the collector the service records into.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Chat answers message in the conversation of sessionID. The turn is
// recorded only when generation succeeds.
func (s *Service) Chat(ctx context.Context, rc *observability.RequestContext, sessionID, message string) (reply *Reply, err error) {
	s.metrics.RecordRequest(OperationChat)
	defer func() {
		s.metrics.RecordDuration(OperationChat, rc.Duration())
		if err != nil {
			s.metrics.RecordFailure(OperationChat)
			rc.Error("chat failed", err,
				slog.String(observability.LogFieldErrorCode, string(chaterrors.GetCodeFromError(err, chaterrors.ErrCodeInternal))),
				slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
		}
	}()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, chaterrors.InvalidArgument("message is required")
	}
	rc.Info("chat started", slog.Int(observability.LogFieldMessageLen, len(message)))

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, chaterrors.FromContextError(err, chaterrors.ErrCodeServiceUnavailable, "session busy")
	}
	defer unlock()

	conv, err := s.history.Recover(ctx, sessionID)
	if err != nil {
		return nil, chaterrors.SessionStoreFailed("failed to load history", err)
	}

	prompt := s.builder.Build(conv.Snapshot(), message)
	s.metrics.RecordPromptTokens(prompt.Tokens)
	rc.Debug("prompt built",
		slog.Int(observability.LogFieldHistoryTurns, prompt.Turns),
		slog.Int("dropped_turns", prompt.Dropped),
		slog.Int(observability.LogFieldPromptTokens, prompt.Tokens))

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	text := s.cleaner.Clean(raw, prompt.Text)

	if err := s.history.Record(ctx, sessionID, conv, memory.Turn{User: message, Bot: text}); err != nil {
		// The reply is still returned; only this turn is missing from history.
		rc.Warn("failed to record turn", slog.String("error", err.Error()))
	}

	html, err := markdown.RenderHTML(text)
	if err != nil {
		rc.Warn("failed to render reply", slog.String("error", err.Error()))
		html = ""
	}

	rc.Info("chat completed",
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
		slog.Int(observability.LogFieldHistoryTurns, prompt.Turns),
		slog.Int(observability.LogFieldPromptTokens, prompt.Tokens),
		slog.Int("response_length", len(text)))

	return &Reply{Text: text, HTML: html, Prompt: prompt}, nil
}

// generate waits for a free slot and runs the engine once. There is no retry.
func (s *Service) generate(ctx context.Context, prompt *aicontext.Prompt) (string, error) {
	waitStart := time.Now()
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", chaterrors.FromContextError(err, chaterrors.ErrCodeServiceUnavailable, "no generation slot available")
	}
	defer s.slots.Release(1)

	if waited := time.Since(waitStart); waited > time.Second {
		slog.Debug("waited for generation slot", "wait_ms", waited.Milliseconds())
	}

	raw, err := s.engine.Generate(ctx, &ai.GenerateRequest{
		Prompt:       prompt.Text,
		PromptTokens: prompt.Tokens,
	})
	if err != nil {
		return "", chaterrors.FromContextError(err, chaterrors.ErrCodeGenerationFailed, "generation failed")
	}
	return raw, nil
}

// Reset forgets the conversation of sessionID. It is idempotent.
func (s *Service) Reset(ctx context.Context, rc *observability.RequestContext, sessionID string) error {
	s.metrics.RecordRequest(OperationReset)

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		s.metrics.RecordFailure(OperationReset)
		return chaterrors.FromContextError(err, chaterrors.ErrCodeServiceUnavailable, "session busy")
	}
	defer unlock()

	if err := s.history.Reset(ctx, sessionID); err != nil {
		s.metrics.RecordFailure(OperationReset)
		return chaterrors.SessionStoreFailed("failed to reset history", err)
	}
	rc.Info("session reset")
	return nil
}

// History returns the recorded turns of sessionID, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	turns, err := s.history.Turns(ctx, sessionID)
	if err != nil {
		return nil, chaterrors.SessionStoreFailed("failed to load history", err)
	}
	return turns, nil
}

// HistoryLimit returns the number of turns kept per session.
func (s *Service) HistoryLimit() int {
	return s.history.Limit()
}
