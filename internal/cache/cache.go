// Package cache provides the in-memory response cache for the relay.
//
// Entries carry a per-entry TTL and are expired lazily on read; a periodic
// sweep (see internal/worker) reclaims entries nobody reads again. Capacity
// is bounded by least-recently-accessed eviction: repeatedly re-requested
// keys survive, one-off requests age out first.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Defaults applied by the config layer. The 5s TTL mirrors the backend's
// own response cache window so client and server staleness align.
const (
	DefaultMaxSize = 100
	DefaultTTL     = 5 * time.Second
)

// Stats is a point-in-time diagnostic snapshot of the cache.
type Stats struct {
	Size             int   `json:"size"`
	ExpiredCount     int   `json:"expired_count"`
	ActiveCount      int   `json:"active_count"`
	TotalAccessCount int64 `json:"total_access_count"`
	MaxSize          int   `json:"max_size"`
}

// entry wraps a cached value with its bookkeeping timestamps.
type entry[V any] struct {
	key            string
	value          V
	createdAt      time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time
	accessCount    int64
}

// Memory is a mutex-guarded in-memory cache with per-entry TTL and
// LRU eviction. The zero value is not usable; use NewMemory.
type Memory[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element // value: *entry[V]
	order      *list.List               // front = most recently accessed
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time // replaceable in tests
}

// NewMemory creates a cache with the given max entry count and default TTL.
// maxSize <= 0 disables storage entirely (every Set is immediately evicted).
func NewMemory[V any](maxSize int, defaultTTL time.Duration) *Memory[V] {
	return &Memory[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get retrieves a value if present and not expired. An expired entry is
// removed on access, so a caller never observes staleness beyond the TTL
// the value was stored with, regardless of the sweep interval.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	now := m.now()
	if !now.Before(e.expiresAt) {
		m.removeLocked(el)
		return zero, false
	}
	e.accessCount++
	e.lastAccessedAt = now
	m.order.MoveToFront(el)
	return e.value, true
}

// Set inserts or overwrites an entry. ttl == 0 selects the configured
// default; a negative ttl yields an already-expired entry. If the insert
// pushes the cache over capacity, the least-recently-accessed entries are
// evicted until the size bound holds again. The entry just inserted is
// never evicted unless maxSize <= 0.
func (m *Memory[V]) Set(_ context.Context, key string, val V, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if el, ok := m.items[key]; ok {
		// Overwrite resets all bookkeeping; no stale mix of the two writes.
		e := el.Value.(*entry[V])
		e.value = val
		e.createdAt = now
		e.lastAccessedAt = now
		e.expiresAt = now.Add(ttl)
		e.accessCount = 0
		m.order.MoveToFront(el)
		return
	}

	e := &entry[V]{
		key:            key,
		value:          val,
		createdAt:      now,
		lastAccessedAt: now,
		expiresAt:      now.Add(ttl),
	}
	m.items[key] = m.order.PushFront(e)

	for len(m.items) > m.maxSize {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.removeLocked(oldest)
	}
}

// Delete removes the entry if present and reports whether it was there.
func (m *Memory[V]) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	m.removeLocked(el)
	return true
}

// Purge removes all entries.
func (m *Memory[V]) Purge(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
}

// Cleanup removes every expired entry and returns how many were removed.
// This is the active-expiration pass; correctness of staleness never
// depends on it (Get checks synchronously).
func (m *Memory[V]) Cleanup(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[V]); !now.Before(e.expiresAt) {
			m.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Stats computes a read-only snapshot without mutating the cache.
func (m *Memory[V]) Stats(_ context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := Stats{Size: len(m.items), MaxSize: m.maxSize}
	for el := m.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[V])
		if now.Before(e.expiresAt) {
			s.ActiveCount++
		} else {
			s.ExpiredCount++
		}
		s.TotalAccessCount += e.accessCount
	}
	return s
}

// removeLocked unlinks el from both the list and the map. Caller holds mu.
func (m *Memory[V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	m.order.Remove(el)
	delete(m.items, e.key)
}
