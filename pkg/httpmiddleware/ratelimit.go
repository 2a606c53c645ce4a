package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc picks the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Skip exempts requests from limiting, e.g. health checks.
	Skip func(*http.Request) bool
}

// SkipPaths exempts requests whose path equals one of paths.
func SkipPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// window counts requests of one key in the current and previous fixed
// windows. The sliding estimate weights prev by its overlap with the last
// Window of time.
type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// decision is the outcome of one limiter check.
type decision struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

type limiter struct {
	max    int
	length time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(limit int, length time.Duration) *limiter {
	return &limiter{
		max:     limit,
		length:  length,
		windows: make(map[string]*window),
	}
}

// take counts one request for key at now unless the limit is reached.
func (l *limiter) take(key string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.length)
	w, ok := l.windows[key]
	switch {
	case !ok:
		w = &window{currStart: start}
		l.windows[key] = w
	case start.Sub(w.currStart) >= 2*l.length:
		*w = window{currStart: start}
	case start.After(w.currStart):
		*w = window{prev: w.curr, currStart: start}
	}

	overlap := 1 - float64(now.Sub(w.currStart))/float64(l.length)
	count := w.prev*max(overlap, 0) + w.curr
	d := decision{resetAt: w.currStart.Add(l.length)}
	if count >= float64(l.max) {
		return d
	}

	w.curr++
	d.allowed = true
	d.remaining = max(int(float64(l.max)-count-1), 0)
	return d
}

// evict drops keys idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.currStart) >= 2*l.length {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.length)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit limits requests per key with a sliding window. Responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset; rejected
// requests get 429 with Retry-After. Idle keys are never evicted, so use
// RateLimitWithCleanup for long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, newLimiter(cfg.Max, cfg.Window), time.Now)
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle keys
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg.Max, cfg.Window)
	go l.evictLoop(ctx)
	return rateLimit(cfg, l, time.Now)
}

func rateLimit(cfg RateLimitConfig, l *limiter, now func() time.Time) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = clientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			t := now()
			d := l.take(key, t)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.resetAt.Unix(), 10))

			if !d.allowed {
				retry := max(d.resetAt.Sub(t), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				zctx.From(r.Context()).Warn("Rate limited",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
