package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/localchat/plugin/ai"
	"github.com/hrygo/localchat/server/auth"
	"github.com/hrygo/localchat/server/middleware"
)

type testServer struct {
	e      *echo.Echo
	engine *ai.MockEngine
	cookie *http.Cookie
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	engine := ai.NewMockEngine("Bonjour !")
	svc := newTestService(t, engine, 5, 1)

	e := echo.New()
	sessions := auth.NewSessionManager("test-secret", time.Hour, false)
	g := e.Group("", sessions.Middleware())

	var chatMiddleware []echo.MiddlewareFunc
	if limiter != nil {
		chatMiddleware = append(chatMiddleware, middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:   limiter,
			KeyFunc:   auth.SessionIDFromContext,
			ErrorBody: RateLimitErrorBody,
		}))
	}
	NewHandler(svc, nil).RegisterRoutes(g, chatMiddleware...)

	return &testServer{e: e, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			s.cookie = c
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandler_ChatFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/chat", `{"message":"Salut"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[chatResponse](t, rec)
	assert.Equal(t, "Bonjour !", resp.Response)
	assert.Equal(t, "<p>Bonjour !</p>\n", resp.ResponseHTML)

	rec = s.do(t, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[historyResponse](t, rec)
	require.Len(t, history.Turns, 1)
	assert.Equal(t, "Salut", history.Turns[0].User)
	assert.Equal(t, 5, history.MaxHistoryLength)

	// The cookie carries the session into the next prompt.
	s.do(t, http.MethodPost, "/chat", `{"message":"Encore"}`)
	requests := s.engine.Requests()
	require.Len(t, requests, 2)
	assert.True(t, strings.HasPrefix(requests[1].Prompt, "Human: Salut\nAssistant: Bonjour !\n"))
}

func TestHandler_Reset(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/chat", `{"message":"Salut"}`)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/reset", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode[statusResponse](t, rec).Status)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/history", "")
	assert.Empty(t, decode[historyResponse](t, rec).Turns)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := s.do(t, http.MethodPost, "/chat", `{"message":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_ARGUMENT", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := s.do(t, http.MethodPost, "/chat", `{"message":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("engine failure", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.engine.Err = errors.New("out of memory")

		rec := s.do(t, http.MethodPost, "/chat", `{"message":"Salut"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "GENERATION_FAILED", body.Code)
		assert.NotContains(t, body.Error, "out of memory")

		rec = s.do(t, http.MethodGet, "/api/v1/history", "")
		assert.Empty(t, decode[historyResponse](t, rec).Turns)
	})
}

func TestHandler_RateLimit(t *testing.T) {
	s := newTestServer(t, middleware.NewRateLimiter(0.001, 1))

	rec := s.do(t, http.MethodPost, "/chat", `{"message":"un"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/chat", `{"message":"deux"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode[ErrorResponse](t, rec).Code)

	// Reset is not rate limited.
	rec = s.do(t, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
