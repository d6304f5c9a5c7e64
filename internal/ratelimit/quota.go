package ratelimit

import "sync"

// Quota mirrors the backend's monthly request allowance, synced from the
// X-Requests-Used / X-Requests-Remaining headers the backend attaches to
// every response. Until the first sync the allowance is unknown and all
// requests pass.
type Quota struct {
	mu        sync.Mutex
	used      float64
	remaining float64
	reserve   float64 // floor kept free for out-of-band use
	seen      bool
}

// NewQuota creates a Quota that treats the last reserve requests of the
// allowance as off-limits.
func NewQuota(reserve int64) *Quota {
	return &Quota{reserve: float64(reserve)}
}

// Sync records the allowance as reported by the backend.
func (q *Quota) Sync(used, remaining float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used = used
	q.remaining = remaining
	q.seen = true
}

// Exhausted reports whether the usable allowance is gone.
func (q *Quota) Exhausted() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen && q.remaining <= q.reserve
}

// Snapshot returns the last synced usage. ok is false before the first sync.
func (q *Quota) Snapshot() (used, remaining float64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used, q.remaining, q.seen
}
