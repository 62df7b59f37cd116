package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-IP request throttling limits. The general limit
// covers every endpoint; auth endpoints get a stricter additional cap.
type RateLimitConfig struct {
	GeneralLimit  int
	GeneralWindow time.Duration
	AuthLimit     int
	AuthWindow    time.Duration
}

func limitHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later.","reason":"RATE_LIMITED"}`))
}

// GeneralRateLimit throttles all requests by client IP.
func GeneralRateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.GeneralLimit,
		config.GeneralWindow,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitHandler),
	)
}

// AuthRateLimit applies the stricter per-IP cap for authentication endpoints.
func AuthRateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.AuthLimit,
		config.AuthWindow,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitHandler),
	)
}
