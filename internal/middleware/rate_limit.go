package middleware

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"mirror/internal/ratelimit"
)

const tooManyRequests = "Too many requests. Please try again later."

// RateLimitKey is the limiter key RateLimit uses for route and the client
// behind r.
func RateLimitKey(route string, r *http.Request) string {
	return route + ":" + clientIP(r)
}

// RateLimit throttles requests per route and client address. The key is
// built from r.RemoteAddr, so mount it after chi's RealIP. Limiter failures
// are logged and the request is let through.
func RateLimit(l ratelimit.Limiter, route string, limit int, window time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := RateLimitKey(route, r)

			remaining, err := l.Allow(r.Context(), key, limit, window)

			var limited *ratelimit.LimitError
			switch {
			case errors.As(err, &limited):
				log.Info("rate limited",
					zap.String("route", route),
					zap.String("key", key),
					zap.Duration("retry_after", limited.RetryAfter),
				)
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limited.RetryAfter)))
				writeError(w, http.StatusTooManyRequests, tooManyRequests)
				return
			case err != nil:
				log.Warn("rate limiter unavailable, allowing request",
					zap.String("route", route),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
