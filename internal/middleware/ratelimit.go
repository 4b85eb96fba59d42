package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures a global token bucket limiter.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// RateLimitMiddleware enforces a global rate limit for all requests through the handler.
// Rejected requests get a GraphQL error body and a Retry-After hint.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			if !limiter.AllowN(now, 1) {
				w.Header().Set("Retry-After", retryAfter(limiter, now))
				writeGraphQLError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter reports whole seconds until the next token, at least one.
func retryAfter(limiter *rate.Limiter, now time.Time) string {
	missing := 1 - limiter.TokensAt(now)
	seconds := 1
	if limit := float64(limiter.Limit()); limit > 0 && missing > 0 {
		seconds = max(1, int(math.Ceil(missing/limit)))
	}
	return strconv.Itoa(seconds)
}
