package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/localchat/internal/profile"
	"github.com/hrygo/localchat/plugin/ai"
	"github.com/hrygo/localchat/plugin/ai/cache"
	aicontext "github.com/hrygo/localchat/plugin/ai/context"
	"github.com/hrygo/localchat/plugin/ai/modelcache"
	"github.com/hrygo/localchat/plugin/ai/session"
	"github.com/hrygo/localchat/plugin/ai/tokenizer"
	"github.com/hrygo/localchat/server/auth"
	"github.com/hrygo/localchat/server/internal/observability"
	ratelimit "github.com/hrygo/localchat/server/middleware"
	apiv1 "github.com/hrygo/localchat/server/router/api/v1"
	"github.com/hrygo/localchat/server/router/chat"
	"github.com/hrygo/localchat/server/router/frontend"
	"github.com/hrygo/localchat/store"
)

const (
	metricsWindow    = 1000
	sessionCacheSize = 1000
	sessionCacheTTL  = 10 * time.Minute
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	engine       ai.Engine
	sessionCache *cache.Service[*session.ConversationContext]
	cleanupJob   *session.SessionCleanupJob
}

// NewServer wires the chat service. store may be nil, in which case sessions
// live in process memory.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	aiConfig := ai.NewConfigFromProfile(profile)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid inference configuration")
	}

	if needsModelFiles(aiConfig) {
		if _, err := modelcache.New(aiConfig.Model).Ensure(ctx); err != nil {
			if aiConfig.Engine.Backend == "llama" {
				return nil, errors.Wrap(err, "failed to fetch model files")
			}
			slog.Warn("model files unavailable, tokenizer will fall back", "error", err)
		}
	}

	engine, err := ai.NewEngine(aiConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create inference engine")
	}
	s.engine = engine

	counter, err := newCounter(engine, aiConfig)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	format := aicontext.PromptFormat{
		UserLabel:      aiConfig.Context.UserLabel,
		AssistantLabel: aiConfig.Context.AssistantLabel,
	}
	builder := aicontext.NewService(counter, aicontext.Config{
		Format:    format,
		MaxTokens: aiConfig.Context.TokenBudget,
	})

	sessionSvc := s.newSessionService()
	s.cleanupJob = session.NewSessionCleanupJob(sessionSvc, session.CleanupConfig{
		SessionTTL: profile.SessionTTL,
	})

	metrics := observability.NewMetrics(metricsWindow)
	chatService := chat.NewService(
		engine,
		builder,
		session.NewHistory(sessionSvc, aiConfig.Context.MaxHistoryLength),
		metrics,
		chat.Config{Format: format, MaxConcurrent: aiConfig.Engine.MaxConcurrent},
	)

	e := echo.New()
	e.Debug = false
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("64K"))
	s.echoServer = e

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"model":   profile.ModelName,
			"backend": engine.Name(),
		})
	})

	frontendService, err := frontend.NewFrontendService(frontend.PageConfig{
		ModelName:        profile.ModelName,
		MaxHistoryLength: aiConfig.Context.MaxHistoryLength,
		TokenBudget:      aiConfig.Context.TokenBudget,
	})
	if err != nil {
		s.close()
		return nil, errors.Wrap(err, "failed to load frontend")
	}
	if err := frontendService.Serve(e); err != nil {
		s.close()
		return nil, errors.Wrap(err, "failed to register frontend")
	}

	apiv1.NewAPIV1Service(profile, metrics, engine.Name()).RegisterRoutes(e)

	sessions := auth.NewSessionManager(profile.SecretKey, profile.SessionTTL, !profile.IsDev())
	var chatMiddleware []echo.MiddlewareFunc
	if profile.RateLimitRPS > 0 {
		chatMiddleware = append(chatMiddleware, ratelimit.RateLimit(ratelimit.RateLimitConfig{
			Limiter:   ratelimit.NewRateLimiter(profile.RateLimitRPS, profile.RateLimitBurst),
			KeyFunc:   auth.SessionIDFromContext,
			ErrorBody: chat.RateLimitErrorBody,
		}))
	}
	chat.NewHandler(chatService, slog.Default()).RegisterRoutes(e.Group("", sessions.Middleware()), chatMiddleware...)

	return s, nil
}

// Start serves HTTP until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	if err := s.cleanupJob.Start(ctx); err != nil {
		_ = listener.Close()
		return err
	}

	slog.Info("server started", "address", listener.Addr().String(), "backend", s.engine.Name())
	s.echoServer.Listener = listener
	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the engine and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("server shutting down")

	var shutdownErr error
	if err := s.echoServer.Shutdown(ctx); err != nil {
		shutdownErr = errors.Wrap(err, "failed to shutdown server")
	}
	s.close()

	if s.Store != nil {
		if err := s.Store.Close(); err != nil && shutdownErr == nil {
			shutdownErr = errors.Wrap(err, "failed to close store")
		}
	}

	slog.Info("server stopped properly")
	return shutdownErr
}

func (s *Server) close() {
	if s.cleanupJob != nil {
		s.cleanupJob.Stop()
	}
	if s.sessionCache != nil {
		s.sessionCache.Close()
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Warn("failed to close engine", "error", err)
		}
	}
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) newSessionService() session.SessionService {
	if s.Store == nil {
		return session.NewMemoryStore()
	}
	s.sessionCache = cache.NewService[*session.ConversationContext](cache.ServiceConfig{
		Name:       "session",
		Capacity:   sessionCacheSize,
		DefaultTTL: sessionCacheTTL,
	})
	return session.NewSessionStore(s.Store, s.sessionCache)
}

// needsModelFiles reports whether startup should mirror the checkpoint files.
func needsModelFiles(cfg *ai.Config) bool {
	if cfg.Engine.Backend == "llama" {
		return true
	}
	kind := tokenizer.Kind(cfg.Context.Tokenizer)
	return kind == tokenizer.KindHuggingFace || kind == tokenizer.KindAuto || kind == ""
}

// newCounter prefers the engine's own vocabulary, then the configured tokenizer.
func newCounter(engine ai.Engine, cfg *ai.Config) (tokenizer.Counter, error) {
	if counter, ok := engine.(tokenizer.Counter); ok {
		return counter, nil
	}
	kind, err := tokenizer.ParseKind(cfg.Context.Tokenizer)
	if err != nil {
		return nil, err
	}
	counter, err := tokenizer.New(kind, cfg.Model.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tokenizer")
	}
	return counter, nil
}
