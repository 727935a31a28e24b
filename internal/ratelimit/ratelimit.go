// Package ratelimit implements a per-key sliding-window limiter used by the
// serve bridge to reject excess calls before they reach the dispatcher.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows at most capacity calls per key within the trailing window.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	hits     map[string][]time.Time
	now      func() time.Time
}

// New creates a limiter. Capacity and window must be positive.
func New(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		window:   window,
		hits:     make(map[string][]time.Time),
		now:      time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow records one call for key and reports whether it fits in the window.
// Rejected calls are not recorded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	if len(recent) >= l.capacity {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, l.now())
	return true
}

// Remaining reports how many calls key has left in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	l.hits[key] = recent
	if n := l.capacity - len(recent); n > 0 {
		return n
	}
	return 0
}

// RetryAfter reports how long until the oldest recorded call for key leaves
// the window. Zero when the key is under capacity.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	l.hits[key] = recent
	if len(recent) < l.capacity {
		return 0
	}
	return recent[0].Add(l.window).Sub(l.now())
}

// prune drops entries older than the window. Caller holds the lock.
func (l *Limiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(l.hits, key)
		return nil
	}
	return recent
}
