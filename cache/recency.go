// Package cache provides the bounded recency window over recently stored
// records that link discovery scans instead of the full store.
package cache

import (
	"container/list"
	"sync"

	"github.com/hupe1980/engramgo/model"
)

// DefaultCapacity is the recency window size used when none is configured:
// one succession predecessor plus nine radial candidates.
const DefaultCapacity = 10

// RecencyCache is a bounded, insertion-ordered buffer of the most recently
// stored records. Eviction is strict FIFO: reads never refresh an entry's
// position. The cache is process-local and has no persisted form.
type RecencyCache struct {
	mu       sync.RWMutex
	capacity int
	entries  *list.List // front = oldest, back = most recent
}

// New creates a RecencyCache with the given capacity.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *RecencyCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RecencyCache{
		capacity: capacity,
		entries:  list.New(),
	}
}

// Capacity returns the configured capacity.
func (c *RecencyCache) Capacity() int { return c.capacity }

// Push appends an entry, evicting the oldest entry when the window is full.
func (c *RecencyCache) Push(e model.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.PushBack(e)
	for c.entries.Len() > c.capacity {
		c.entries.Remove(c.entries.Front())
	}
}

// Last returns the most recently pushed entry.
func (c *RecencyCache) Last() (model.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	back := c.entries.Back()
	if back == nil {
		return model.CacheEntry{}, false
	}
	return back.Value.(model.CacheEntry), true
}

// LastN returns up to n entries, most recent first.
func (c *RecencyCache) LastN(n int) []model.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > c.entries.Len() {
		n = c.entries.Len()
	}
	out := make([]model.CacheEntry, 0, n)
	for e := c.entries.Back(); e != nil && len(out) < n; e = e.Prev() {
		out = append(out, e.Value.(model.CacheEntry))
	}
	return out
}

// Entries returns all cached entries, oldest first.
func (c *RecencyCache) Entries() []model.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.CacheEntry, 0, c.entries.Len())
	for e := c.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.CacheEntry))
	}
	return out
}

// Len returns the number of cached entries.
func (c *RecencyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Clear empties the window.
func (c *RecencyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Init()
}
