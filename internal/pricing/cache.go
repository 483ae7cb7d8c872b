package pricing

import "sync"

// GenCache is a generation-counter value cache. Every market or model
// mutation bumps the generation; entries are tagged with the
// generation under which they were computed and are only served while
// that generation still matches. This replaces eviction-driven
// memoization with an explicit invalidation discipline.
type GenCache struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]genEntry
}

type genEntry struct {
	gen    uint64
	values []float64
}

// NewGenCache creates an empty cache at generation zero.
func NewGenCache() *GenCache {
	return &GenCache{entries: make(map[string]genEntry)}
}

// Generation returns the current generation counter.
func (c *GenCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Bump invalidates all entries by advancing the generation.
func (c *GenCache) Bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}

// Clear drops all entries without advancing the generation.
func (c *GenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]genEntry)
}

// Get returns the cached values for key if they were computed under
// the current generation.
func (c *GenCache) Get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.gen != c.gen {
		return nil, false
	}
	return e.values, true
}

// Put stores values for key tagged with the current generation.
func (c *GenCache) Put(key string, values []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = genEntry{gen: c.gen, values: values}
}
