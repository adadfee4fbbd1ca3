package cache

import (
	"context"

	"github.com/inkwellco/spool/pkg/embeddings"
)

// CachingEmbedder wraps an Embedder with the cache, so anything consuming
// the embeddings.Embedder interface gets memoization for free.
type CachingEmbedder struct {
	embedder embeddings.Embedder
	cache    *Cache
}

// NewCachingEmbedder wraps embedder with cache.
func NewCachingEmbedder(embedder embeddings.Embedder, cache *Cache) *CachingEmbedder {
	return &CachingEmbedder{
		embedder: embedder,
		cache:    cache,
	}
}

// Embed returns the cached vector for text, computing it through the wrapped
// embedder on a miss.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.cache.GetOrCompute(ctx, text, func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, text)
	})
}

// Close releases the wrapped embedder.
func (e *CachingEmbedder) Close() error {
	return e.embedder.Close()
}

var _ embeddings.Embedder = (*CachingEmbedder)(nil)
