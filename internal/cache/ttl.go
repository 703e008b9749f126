// Package cache provides a small bounded key/value cache with per-entry
// timestamps and an explicit sweep.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	stored time.Time
}

// TTL is a bounded cache where every entry expires ttl after it was stored.
// When full, Set evicts the oldest entry.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[K]entry[V]
	now      func() time.Time
}

// New creates a cache. A capacity <= 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, capacity int) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]entry[V]),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests and by callers that
// share a clock with the cache owner.
func (c *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the value for key if present and not expired. Expired
// entries are removed on access.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// StoredAt returns when key was last stored, if it is still live.
func (c *TTL[K, V]) StoredAt(key K) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return time.Time{}, false
	}
	return e.stored, true
}

// Set stores value under key with the current time.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.sweepLocked()
		if len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = entry[V]{value: value, stored: c.now()}
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Sweep removes expired entries and returns how many were removed.
func (c *TTL[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured lifetime.
func (c *TTL[K, V]) TTL() time.Duration { return c.ttl }

func (c *TTL[K, V]) expired(e entry[V]) bool {
	return c.now().Sub(e.stored) >= c.ttl
}

func (c *TTL[K, V]) sweepLocked() int {
	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *TTL[K, V]) evictOldestLocked() {
	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.stored.Before(oldest) {
			oldestKey, oldest, found = k, e.stored, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
