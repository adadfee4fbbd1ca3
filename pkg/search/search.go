// Package search implements hybrid fact retrieval: a semantic leg over
// embedding vectors and a keyword leg over fact text, run independently and
// fused via Reciprocal Rank Fusion.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inkwellco/spool/pkg/embeddings"
	"github.com/inkwellco/spool/pkg/memory"
)

const (
	// DefaultLimit is the number of facts returned when the caller does
	// not ask for a specific count.
	DefaultLimit = 5

	// DefaultPoolSize is the per-leg candidate pool, independent of the
	// final limit.
	DefaultPoolSize = 20

	// DefaultSemanticWeight and DefaultKeywordWeight are the RRF
	// contribution weights for each leg.
	DefaultSemanticWeight = 0.6
	DefaultKeywordWeight  = 0.4
)

// Options tunes a single search call. Zero values fall back to defaults.
type Options struct {
	// Limit is the maximum number of facts returned.
	Limit int

	// SemanticWeight and KeywordWeight scale each leg's RRF contribution.
	SemanticWeight float64
	KeywordWeight  float64

	// MinConfidence drops facts below this confidence.
	MinConfidence float64

	// Category restricts results to one category when non-empty.
	Category string
}

// Searcher runs hybrid searches against one fact store.
type Searcher struct {
	embedder embeddings.Embedder
	store    memory.Store
	pool     int
	logger   *zap.Logger
}

// Config holds configuration for a searcher.
type Config struct {
	// Embedder resolves query text to vectors. Callers normally pass the
	// caching embedder so repeated queries reuse one computation.
	Embedder embeddings.Embedder

	// Store is the fact store both legs run against.
	Store memory.Store

	// PoolSize is the per-leg candidate pool. Defaults to DefaultPoolSize.
	PoolSize int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewSearcher creates a searcher over the given embedder and store.
func NewSearcher(c Config) *Searcher {
	pool := c.PoolSize
	if pool <= 0 {
		pool = DefaultPoolSize
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Searcher{
		embedder: c.Embedder,
		store:    c.Store,
		pool:     pool,
		logger:   logger,
	}
}

// Search returns the facts most relevant to queryText among ownerID's
// facts, best first. An unusable query vector aborts the whole search;
// finding no candidates in either leg is an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, ownerID, queryText string, opts Options) ([]memory.Fact, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > s.pool {
		limit = s.pool
	}
	semanticWeight := opts.SemanticWeight
	if semanticWeight == 0 {
		semanticWeight = DefaultSemanticWeight
	}
	keywordWeight := opts.KeywordWeight
	if keywordWeight == 0 {
		keywordWeight = DefaultKeywordWeight
	}

	queryVector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryEmbedding, err)
	}

	filter := memory.Filter{
		OwnerID:       ownerID,
		Category:      opts.Category,
		MinConfidence: opts.MinConfidence,
	}
	terms := NormalizeQuery(queryText)

	var (
		semantic []memory.SemanticHit
		keyword  []memory.KeywordHit
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		semantic, err = s.store.SemanticSearch(groupCtx, queryVector, filter, s.pool)
		return err
	})
	group.Go(func() error {
		if len(terms) == 0 {
			return nil
		}
		var err error
		keyword, err = s.store.KeywordSearch(groupCtx, terms, filter, s.pool)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	ids := Fuse(semantic, keyword, semanticWeight, keywordWeight)
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	// Hydration preserves fused order; ids with no resolvable record are
	// dropped rather than erroring.
	facts, err := s.store.Get(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("hybrid search completed",
		zap.String("owner_id", ownerID),
		zap.Int("semantic_hits", len(semantic)),
		zap.Int("keyword_hits", len(keyword)),
		zap.Int("results", len(facts)),
	)

	return facts, nil
}
