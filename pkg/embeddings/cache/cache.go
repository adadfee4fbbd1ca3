// Package cache memoizes text-to-vector computations so repeated queries do
// not re-hit the remote embedding API. Entries expire after a TTL and the
// cache evicts the oldest tenth of its entries by insertion time when it
// grows past capacity (approximate FIFO, deliberately not LRU: recently
// computed entries are never evicted ahead of older ones, however often the
// older ones are read).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a cached vector stays live.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries is the capacity before eviction kicks in.
	DefaultMaxEntries = 1000

	// evictFraction of entries removed per eviction pass.
	evictFraction = 10
)

// Config holds configuration for the embedding cache.
type Config struct {
	// TTL is the entry lifetime. Defaults to DefaultTTL.
	TTL time.Duration

	// MaxEntries is the capacity that triggers eviction. Defaults to
	// DefaultMaxEntries.
	MaxEntries int

	// Logger is the provided zap logger.
	Logger *zap.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// entry is one cached vector. Owned exclusively by the cache; destroyed on
// expiry-read, explicit clear, or capacity eviction.
type entry struct {
	vector     []float32
	insertedAt time.Time
}

// Cache is a process-wide, internally synchronized embedding cache.
type Cache struct {
	config Config

	mu      sync.RWMutex
	entries map[string]*entry

	// flights serializes cache-miss resolution per key so concurrent callers
	// for the same uncached text trigger at most one remote computation.
	flights singleflight.Group
}

// New creates an embedding cache.
func New(config Config) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Cache{
		config:  config,
		entries: make(map[string]*entry),
	}
}

// hashKey derives the fixed-size cache key from raw text.
func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached vector for text, or resolves the miss via
// compute and caches the result. Concurrent callers for the same uncached
// text share a single compute invocation.
func (c *Cache) GetOrCompute(ctx context.Context, text string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	key := hashKey(text)

	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	v, err, _ := c.flights.Do(key, func() (any, error) {
		// Another flight may have filled the slot while we queued.
		if vec, ok := c.lookup(key); ok {
			return vec, nil
		}

		vec, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.store(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]float32), nil
}

// Put seeds the cache with a precomputed vector.
func (c *Cache) Put(text string, vector []float32) {
	c.store(hashKey(text), vector)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// lookup returns a live entry. An expired entry found here is destroyed.
func (c *Cache) lookup(key string) ([]float32, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.config.Now().Sub(e.insertedAt) >= c.config.TTL {
		c.mu.Lock()
		// Re-check under the write lock: the slot may have been refreshed.
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.vector, true
}

// store inserts a vector and applies the eviction policy.
func (c *Cache) store(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		vector:     vector,
		insertedAt: c.config.Now(),
	}

	if len(c.entries) <= c.config.MaxEntries {
		return
	}

	c.evictOldestLocked()
}

// evictOldestLocked removes the oldest tenth of entries by insertion time.
// Caller holds the write lock.
func (c *Cache) evictOldestLocked() {
	type aged struct {
		key        string
		insertedAt time.Time
	}

	all := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, aged{key: key, insertedAt: e.insertedAt})
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].insertedAt.Before(all[j].insertedAt)
	})

	count := len(all) / evictFraction
	if count < 1 {
		count = 1
	}

	for _, a := range all[:count] {
		delete(c.entries, a.key)
	}

	c.config.Logger.Debug("evicted oldest cache entries",
		zap.Int("evicted", count),
		zap.Int("remaining", len(c.entries)),
	)
}
