// Package auth identifies chat sessions with a signed cookie.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
)

const (
	// Issuer is the issuer of session tokens.
	Issuer = "localchat"
	// KeyID is the key id written into the token header.
	KeyID = "v1"
	// SessionAudienceName is the audience of session tokens.
	SessionAudienceName = "chat.session"
	// SessionCookieName is the name of the cookie carrying the session token.
	SessionCookieName = "localchat_session"

	sessionIDContextKey = "session_id"
)

// SessionClaims are the claims of a session token. The session id is the jti.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and verifies session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a SessionManager signing with secret.
// Tokens and cookies expire after ttl without activity; secure marks the
// cookie HTTPS-only.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return shortuuid.New()
}

// GenerateToken signs a session token for sessionID.
func (m *SessionManager) GenerateToken(sessionID string) (string, error) {
	now := m.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Audience: jwt.ClaimStrings{SessionAudienceName},
			IssuedAt: jwt.NewNumericDate(now),
			ID:       sessionID,
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// ParseToken verifies tokenString and returns its session id.
func (m *SessionManager) ParseToken(tokenString string) (string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Name {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			if kid, ok := t.Header["kid"].(string); !ok || kid != KeyID {
				return nil, fmt.Errorf("unexpected kid: %v", t.Header["kid"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(SessionAudienceName),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session token has no id")
	}
	return claims.ID, nil
}

// Resolve returns the session id carried by the request cookie. A missing,
// invalid or expired cookie starts a new session. The cookie is re-issued on
// every call so the expiry slides with activity.
func (m *SessionManager) Resolve(c echo.Context) (string, error) {
	var sessionID string
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		if id, err := m.ParseToken(cookie.Value); err == nil {
			sessionID = id
		}
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	token, err := m.GenerateToken(sessionID)
	if err != nil {
		return "", err
	}
	c.SetCookie(m.newCookie(token))
	return sessionID, nil
}

func (m *SessionManager) newCookie(token string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.ttl > 0 {
		cookie.Expires = m.now().Add(m.ttl)
		cookie.MaxAge = int(m.ttl.Seconds())
	}
	return cookie
}

// Middleware resolves the session of every request and stores its id in the
// echo context.
func (m *SessionManager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID, err := m.Resolve(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to establish session").SetInternal(err)
			}
			c.Set(sessionIDContextKey, sessionID)
			return next(c)
		}
	}
}

// SessionIDFromContext returns the session id stored by Middleware.
func SessionIDFromContext(c echo.Context) string {
	id, _ := c.Get(sessionIDContextKey).(string)
	return id
}
