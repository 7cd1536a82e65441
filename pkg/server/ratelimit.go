package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"candela-hq/guardian/pkg/config"
)

// tokenBucket allows bursts up to capacity and refills at rate tokens per
// second. Fractional tokens accumulate, so low rates still refill.
type tokenBucket struct {
	capacity float64
	rate     float64
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

func newTokenBucket(capacity int, rate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity: float64(capacity),
		rate:     rate,
		tokens:   float64(capacity),
		last:     now,
		lastSeen: now,
	}
}

func (b *tokenBucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}
}

// take consumes one token. When none is available it returns how long until
// one will be.
func (b *tokenBucket) take(now time.Time) (bool, time.Duration) {
	b.refill(now)
	b.lastSeen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / b.rate
	return false, time.Duration(wait * float64(time.Second))
}

// rateLimiter keeps one bucket per client. Buckets idle longer than
// idleTimeout are dropped on a later call.
type rateLimiter struct {
	rate        float64
	burst       int
	idleTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		rate:        cfg.RequestsPerSecond,
		burst:       cfg.Burst,
		idleTimeout: cfg.IdleTimeout,
		now:         time.Now,
		buckets:     make(map[string]*tokenBucket),
	}
}

func (l *rateLimiter) allow(client string) (bool, time.Duration, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.idleTimeout > 0 && now.Sub(l.lastSweep) >= l.idleTimeout {
		for id, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idleTimeout {
				delete(l.buckets, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[client]
	if !ok {
		b = newTokenBucket(l.burst, l.rate, now)
		l.buckets[client] = b
	}
	allowed, wait := b.take(now)
	return allowed, wait, int(b.tokens)
}

// clients returns the number of tracked buckets.
func (l *rateLimiter) clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, wait, remaining := l.allow(clientID(r))
		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			seconds := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			writeError(w, http.StatusTooManyRequests, errRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
