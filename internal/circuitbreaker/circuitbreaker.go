// Package circuitbreaker guards the odds backend with a sliding-window
// error-rate breaker. When the backend is known bad, polling requests are
// short-circuited instead of piling up behind timeouts.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip
	MinSamples     int           // minimum requests before breaker can open
	WindowSeconds  int           // sliding window duration in seconds
	OpenTimeout    time.Duration // time in OPEN before transitioning to HALF_OPEN
}

// DefaultConfig returns defaults tuned for a polling workload: trip fast,
// probe again quickly so a recovered backend resumes serving within one
// or two poll intervals.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     5,
		WindowSeconds:  30,
		OpenTimeout:    15 * time.Second,
	}
}

// bucket holds error and request counts for a 1-second slot.
type bucket struct {
	errors float64 // weighted error sum
	total  int
}

// window is a ring of 1-second buckets covering the configured duration.
type window struct {
	buckets  []bucket
	head     int   // index of the current-second bucket
	headTime int64 // unix seconds of head bucket
}

func newWindow(seconds int) window {
	if seconds <= 0 {
		seconds = 30
	}
	return window{buckets: make([]bucket, seconds)}
}

// advance rotates the head to the current second, zeroing buckets that
// fell out of the window.
func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	n := min(int(gap), len(w.buckets))
	for i := range n {
		w.buckets[(w.head+1+i)%len(w.buckets)] = bucket{}
	}
	w.head = (w.head + int(gap)) % len(w.buckets)
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

func (w *window) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	for i := range w.buckets {
		errs += w.buckets[i].errors
		samples += w.buckets[i].total
	}
	if samples == 0 {
		return 0, 0
	}
	return errs / float64(samples), samples
}

func (w *window) reset() {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
	w.head = 0
	w.headTime = 0
}

// Breaker is the circuit breaker state machine for the backend.
type Breaker struct {
	mu          sync.Mutex
	state       State
	window      window
	openedAt    time.Time
	probing     bool // a half-open probe is in flight
	threshold   float64
	minSamples  int
	openTimeout time.Duration
	now         func() time.Time // replaceable in tests
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		state:       StateClosed,
		window:      newWindow(cfg.WindowSeconds),
		threshold:   cfg.ErrorThreshold,
		minSamples:  cfg.MinSamples,
		openTimeout: cfg.OpenTimeout,
		now:         time.Now,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. In the open state it flips
// to half-open once the open timeout has elapsed and admits that request
// as the single probe.
func (b *Breaker) Allow() bool {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.openTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful request outcome. A successful
// half-open probe closes the breaker and clears the window.
func (b *Breaker) RecordSuccess() {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window.record(0, now)
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window.reset()
	}
}

// RecordError records a failed request with the given error weight.
// A failed half-open probe reopens immediately.
func (b *Breaker) RecordError(weight float64) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window.record(weight, now)
	switch b.state {
	case StateClosed:
		rate, samples := b.window.errorRate(now)
		if samples >= b.minSamples && rate >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	}
}
