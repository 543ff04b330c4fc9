// Package audiocache stores synthesized audio keyed by the spoken text, so
// repeated phrases are not re-synthesized. The cache is bounded: inserting
// past the limit evicts the oldest-inserted entry, regardless of access
// pattern.
package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultMaxEntries bounds the cache when no explicit size is given.
const DefaultMaxEntries = 50

// Cache is a bounded text-to-audio cache with insertion-order eviction.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]byte
	order   []string // insertion order, oldest first
}

// New creates a cache bounded to maxEntries. Non-positive sizes fall back
// to DefaultMaxEntries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		max:     maxEntries,
		entries: make(map[string][]byte, maxEntries),
	}
}

// Key derives the cache key for a text. Same text, same key.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached audio for a text, or nil when absent.
// Lookups do not affect eviction order.
func (c *Cache) Get(text string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[Key(text)]
}

// Set stores audio for a text, evicting the oldest-inserted entry when the
// bound is exceeded. Re-setting an existing text replaces the audio without
// refreshing its insertion position.
func (c *Cache) Set(text string, audio []byte) {
	key := Key(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = audio
		return
	}

	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = audio
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte, c.max)
	c.order = nil
}
