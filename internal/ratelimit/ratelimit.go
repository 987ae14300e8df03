// Package ratelimit throttles plugin calls per user with a token bucket kept
// in Redis, so every replica draws from the same bucket.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] bucket, ARGV[1] burst, ARGV[2] tokens per second, ARGV[3] now in ms.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or burst
local last = tonumber(bucket[2]) or now
local refill = math.floor(math.max(0, now - last) / 1000 * rate)
if refill > 0 then
  tokens = math.min(burst, tokens + refill)
  last = now
end
local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', key, 'tokens', tokens, 'last', last)
redis.call('EXPIRE', key, math.ceil(burst / rate) + 1)
return allowed
`)

type Limiter struct {
	rdb    *redis.Client
	prefix string
	rps    int
	burst  int
}

// New returns nil when rps is not positive; a nil Limiter lets everything through.
func New(rdb *redis.Client, prefix string, rps, burst int) *Limiter {
	if rdb == nil || rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = rps
	}
	return &Limiter{rdb: rdb, prefix: prefix + ":ratelimit", rps: rps, burst: burst}
}

// Middleware rejects requests over budget with 429. Redis errors let the
// request through.
func (l *Limiter) Middleware(keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.prefix + ":" + keyFunc(r)
			now := time.Now().UnixMilli()
			allowed, err := tokenBucket.Run(r.Context(), l.rdb, []string{key}, l.burst, l.rps, now).Int()
			if err != nil {
				slog.Warn("rate limiter unavailable", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if allowed != 1 {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KeyByUserOrIP keys on the X-User-ID header when the host sends one.
func KeyByUserOrIP(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return "user:" + id
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
