package provider

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/inkwellco/spool/pkg/llm"
)

// DefaultModelCacheTTL is how long a fetched model list stays live.
const DefaultModelCacheTTL = time.Minute

// ModelCache memoizes one provider's model list with a short TTL. Misses are
// serialized per cache instance so at most one fetch is in flight; the result
// is handed to all waiters.
type ModelCache struct {
	ttl    time.Duration
	fetch  func(ctx context.Context) ([]llm.Model, error)
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	models    []llm.Model
	fetchedAt time.Time

	flight singleflight.Group
}

// ModelCacheConfig holds configuration for a model cache.
type ModelCacheConfig struct {
	// TTL is the cached list lifetime. Defaults to DefaultModelCacheTTL.
	TTL time.Duration

	// Fetch loads the model list from the provider. Required.
	Fetch func(ctx context.Context) ([]llm.Model, error)

	// Logger is the provided zap logger.
	Logger *zap.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewModelCache creates a model cache around the given fetch function.
func NewModelCache(config ModelCacheConfig) *ModelCache {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultModelCacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &ModelCache{
		ttl:    ttl,
		fetch:  config.Fetch,
		logger: logger,
		now:    now,
	}
}

// Models returns the cached model list, fetching on a miss. Concurrent
// callers during a miss share a single fetch.
func (c *ModelCache) Models(ctx context.Context) ([]llm.Model, error) {
	if models, ok := c.cached(); ok {
		return models, nil
	}

	v, err, _ := c.flight.Do("models", func() (any, error) {
		// Another waiter's fetch may have landed while we queued.
		if models, ok := c.cached(); ok {
			return models, nil
		}

		models, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.models = models
		c.fetchedAt = c.now()
		c.mu.Unlock()

		return models, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]llm.Model), nil
}

// Refresh forces a background re-fetch. The current value keeps serving until
// the fetch lands; fetch failures keep the old value and are logged.
func (c *ModelCache) Refresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		models, err := c.fetch(ctx)
		if err != nil {
			c.logger.Warn("model list refresh failed", zap.Error(err))
			return
		}

		c.mu.Lock()
		c.models = models
		c.fetchedAt = c.now()
		c.mu.Unlock()
	}()
}

// Clear invalidates the cached list immediately.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
	c.fetchedAt = time.Time{}
}

// cached returns the model list while it is younger than the TTL.
func (c *ModelCache) cached() ([]llm.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil || c.fetchedAt.IsZero() {
		return nil, false
	}
	if c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.models, true
}
