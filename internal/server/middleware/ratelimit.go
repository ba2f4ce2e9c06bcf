package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"secret-vault/backend/internal/server/httpx"
)

// RateLimiter throttles requests per client IP with a token bucket per key. Limit requests
// are allowed per window, refilled evenly across the window.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	nowF     func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows limit requests per window per client. Non-positive values fall back to
// 100 requests per 15 minutes.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		idle:     window,
		nowF:     time.Now,
	}
}

// Allow reports whether key may proceed now, and otherwise how long until it may.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.nowF()
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	res := e.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Duration(math.MaxInt64)
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Prune forgets clients idle for longer than the window. A forgotten client starts with a full bucket,
// which is what it would have refilled to anyway.
func (l *RateLimiter) Prune() int {
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
			n++
		}
	}
	return n
}

// RunPruner calls Prune every interval until ctx is done.
func (l *RateLimiter) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// Middleware returns 429 with Retry-After when the client IP (see ClientIP) is over its limit.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(ClientIPFromContext(r.Context()))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			httpx.WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
