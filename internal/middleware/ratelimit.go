package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// rateLimitKeyPrefix namespaces limiter counters in Redis.
const rateLimitKeyPrefix = "ratelimit:activate:"

// AttemptLimiter throttles activation attempts per client address. With a
// Redis client it counts in a fixed window shared across instances;
// otherwise it falls back to a local token bucket.
type AttemptLimiter struct {
	redis  *redis.Client
	local  *rate.Limiter
	logger *slog.Logger
	window time.Duration
	limit  int
}

// NewAttemptLimiter creates an activation attempt limiter. redisClient may
// be nil.
func NewAttemptLimiter(redisClient *redis.Client, rps float64, burst int, window time.Duration, limit int, logger *slog.Logger) *AttemptLimiter {
	return &AttemptLimiter{
		redis:  redisClient,
		local:  rate.NewLimiter(rate.Limit(rps), burst),
		logger: logger,
		window: window,
		limit:  limit,
	}
}

// Handler enforces the limit, answering 429 with a problem document when a
// client exhausts its window.
func (l *AttemptLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !l.allow(ctx, clientAddr(r)) {
			l.logger.WarnContext(ctx, "activation rate limit exceeded",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"/errors/rate-limited","title":"Too Many Requests","status":429,"ok":false,"reason":"rate_limited"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *AttemptLimiter) allow(ctx context.Context, addr string) bool {
	if l.redis == nil {
		return l.local.Allow()
	}

	key := rateLimitKeyPrefix + addr
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis trouble must not take activations down with it.
		l.logger.WarnContext(ctx, "rate limit backend unavailable, using local limiter",
			slog.String("error", err.Error()),
		)
		return l.local.Allow()
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}
	return count <= int64(l.limit)
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
