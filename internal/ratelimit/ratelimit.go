// Package ratelimit provides best-effort per-client request counting over a
// fixed 60-second window. It is advisory only: counts are process-local and
// concurrent increments for one key may interleave.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the counting period. A client's count resets when its window
// start falls out of this range.
const Window = 60 * time.Second

// Counter tracks request counts per client identifier. Implementations must
// be safe for concurrent use. The interface is deliberately small so a
// shared-store implementation can replace the in-memory one without touching
// the HTTP layer.
type Counter interface {
	// Increment records one request for key at time now and returns the
	// count within the current window, including this request.
	Increment(key string, now time.Time) int
	// Prune drops entries whose window expired before now.
	Prune(now time.Time)
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Memory is the in-process Counter.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemory returns an empty in-memory counter.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*bucket)}
}

// Increment records a request and returns the in-window count for key.
func (m *Memory) Increment(key string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || now.Sub(b.windowStart) > Window {
		b = &bucket{windowStart: now}
		m.buckets[key] = b
	}
	b.count++
	return b.count
}

// Prune sweeps expired entries. Called lazily on each request so the map
// never grows past the set of clients seen in the last window.
func (m *Memory) Prune(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, b := range m.buckets {
		if now.Sub(b.windowStart) > Window {
			delete(m.buckets, key)
		}
	}
}
