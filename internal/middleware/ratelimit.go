package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"estate-graphql/internal/observability"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	// IdleTTL drops buckets of clients quiet for longer than this. Zero
	// uses ten minutes.
	IdleTTL time.Duration
	Metrics *observability.SecurityMetrics
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	clients map[string]*clientBucket
	swept   time.Time
	now     func() time.Time
}

func newClientLimiter(rps float64, burst int, ttl time.Duration) *clientLimiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &clientLimiter{
		rate:    rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > l.ttl {
		for key, bucket := range l.clients {
			if now.Sub(bucket.lastSeen) > l.ttl {
				delete(l.clients, key)
			}
		}
		l.swept = now
	}

	bucket, ok := l.clients[client]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[client] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// clientIP is the host part of RemoteAddr. Forwarding headers are not
// trusted; run behind a proxy that rewrites RemoteAddr if needed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests from a client IP whose bucket is empty.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := newClientLimiter(cfg.RPS, cfg.Burst, cfg.IdleTTL)
	return rateLimitWith(limiter, cfg.Metrics)
}

func rateLimitWith(limiter *clientLimiter, metrics *observability.SecurityMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientIP(r)) {
				if metrics != nil {
					metrics.RecordRateLimited(r.Context(), r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
