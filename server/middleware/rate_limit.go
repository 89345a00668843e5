package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/localchat/plugin/ai/cache"
)

const (
	// DefaultRateLimiterCapacity bounds how many keys keep a limiter.
	DefaultRateLimiterCapacity = 10000
	// idleLimiterTTL is how long an unused limiter is kept before it is dropped.
	idleLimiterTTL = 30 * time.Minute
)

// RateLimiter provides per-key rate limiting. Limiters of idle keys are
// evicted, so a key that comes back starts with a full bucket.
type RateLimiter struct {
	limits *cache.LRUCache[*rate.Limiter]
	rps    rate.Limit
	burst  int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second per
// key with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limits: cache.NewLRUCache[*rate.Limiter](DefaultRateLimiterCapacity, idleLimiterTTL),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	return rl.limits.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rl.rps, rl.burst)
	})
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// RateLimitConfig configures the echo middleware.
type RateLimitConfig struct {
	Limiter *RateLimiter
	// KeyFunc identifies the caller; the real IP is used when nil.
	KeyFunc func(c echo.Context) string
	// ErrorBody builds the 429 response body.
	ErrorBody func(c echo.Context) any
}

// RateLimit returns middleware answering 429 once a key exceeds its limit.
func RateLimit(config RateLimitConfig) echo.MiddlewareFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c echo.Context) string { return c.RealIP() }
	}
	errorBody := config.ErrorBody
	if errorBody == nil {
		errorBody = func(echo.Context) any {
			return map[string]string{"error": "rate limit exceeded"}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !config.Limiter.Allow(keyFunc(c)) {
				return c.JSON(http.StatusTooManyRequests, errorBody(c))
			}
			return next(c)
		}
	}
}
