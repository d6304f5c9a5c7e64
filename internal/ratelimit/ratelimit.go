// Package ratelimit paces outbound requests to the odds backend with
// lazy-refill token buckets. The backend enforces a per-minute request rate
// and a monthly request allowance; a request rejected server-side still burns
// quota, so the relay throttles before sending.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(limit int64, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(limit),
		max:      float64(limit),
		rate:     float64(limit) / 60.0, // per-minute limit -> per-second rate
		lastFill: now,
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// tryConsume attempts to consume one token. Returns remaining and whether allowed.
func (b *bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns the wait until one token is available.
func (b *bucket) retryAfter() time.Duration {
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Limiter holds one bucket per backend route, all sharing the same per-minute
// limit. Routes are polled on independent schedules, so a burst on one route
// must not starve the others.
type Limiter struct {
	mu      sync.Mutex
	rpm     int64
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter creates a Limiter allowing rpm requests per minute per route.
// An rpm of 0 or less means unlimited.
func NewLimiter(rpm int64) *Limiter {
	return &Limiter{
		rpm:     rpm,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one request slot for the route.
func (l *Limiter) Allow(route string) Result {
	if l == nil || l.rpm <= 0 {
		return Result{Allowed: true}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[route]
	if !ok {
		b = newBucket(l.rpm, now)
		l.buckets[route] = b
	}

	remaining, allowed := b.tryConsume(now)
	if allowed {
		return Result{Allowed: true, Limit: l.rpm, Remaining: remaining}
	}
	return Result{Limit: l.rpm, RetryAfter: b.retryAfter()}
}
