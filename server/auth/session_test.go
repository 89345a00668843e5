package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)

	token, err := m.GenerateToken("sess-1")
	require.NoError(t, err)

	id, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
}

func TestSessionToken_Rejected(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)
	token, err := m.GenerateToken("sess-1")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewSessionManager("other", time.Hour, false).ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSessionManager("secret", time.Hour, false)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ParseToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("empty id", func(t *testing.T) {
		empty, err := m.GenerateToken("")
		require.NoError(t, err)
		_, err = m.ParseToken(empty)
		assert.Error(t, err)
	})
}

func newSessionEcho(m *SessionManager) *echo.Echo {
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, SessionIDFromContext(c))
	})
	return e
}

func TestMiddleware_MintsAndKeepsSession(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)
	e := newSessionEcho(m)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	first := rec.Body.String()
	require.NotEmpty(t, first)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, first, rec.Body.String(), "cookie keeps the session")
}

func TestMiddleware_InvalidCookieStartsNewSession(t *testing.T) {
	e := newSessionEcho(NewSessionManager("secret", time.Hour, false))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tampered"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
	assert.Len(t, rec.Result().Cookies(), 1)
}
