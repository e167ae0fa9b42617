package daemon

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiter is a token bucket per caller.
type rateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration
	burst    int
	now      func() time.Time
	swept    time.Time
}

type bucket struct {
	tokens    int
	lastCheck time.Time
}

// newRateLimiter allows rate requests per interval with bursts up to burst.
func newRateLimiter(rate int, interval time.Duration, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		burst:    burst,
		now:      time.Now,
	}
}

// allow takes a token for key and reports whether one was available.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, lastCheck: now}
		rl.buckets[key] = b
	}

	if refill := int(now.Sub(b.lastCheck)/rl.interval) * rl.rate; refill > 0 {
		b.tokens = min(b.tokens+refill, rl.burst)
		b.lastCheck = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// sweep drops buckets idle long enough to be full again. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	idle := rl.interval * time.Duration(max(rl.burst/max(rl.rate, 1), 1))
	if now.Sub(rl.swept) < idle {
		return
	}
	rl.swept = now
	for key, b := range rl.buckets {
		if now.Sub(b.lastCheck) >= idle {
			delete(rl.buckets, key)
		}
	}
}

// rateLimitKey identifies the caller by X-User-ID, falling back to the
// remote host.
func rateLimitKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// limit wraps an LLM-backed handler. A nil limiter passes everything.
func (rl *rateLimiter) limit(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	retryAfter := strconv.Itoa(max(int(rl.interval.Seconds()), 1))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateLimitKey(r)
		if !rl.allow(key) {
			slog.Warn("rate limit exceeded",
				"correlation_id", GetCorrelationID(r.Context()),
				"key", key,
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many generation requests, please try again later"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
