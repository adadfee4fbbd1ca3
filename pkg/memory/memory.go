// Package memory provides a pluggable fact store for the spool system.
//
// Facts are distilled, durable pieces of knowledge owned by a user. The
// [Store] interface exposes the two retrieval legs hybrid search needs: a
// semantic leg over embedding vectors and a keyword leg over fact text. Both
// legs return lightweight hits ranked by their own native ordering; fusion
// and hydration happen above this package.
//
// Drivers are pluggable via configuration:
//
//	[memory]
//	driver = "sqlitevec"   # or "qdrant", "inmemory"
package memory

import (
	"context"
	"time"
)

// Fact is a distilled piece of knowledge extracted from conversations.
type Fact struct {
	// ID is a unique identifier for the fact.
	ID string `json:"id"`

	// OwnerID is the user the fact belongs to. All retrieval is scoped to
	// one owner.
	OwnerID string `json:"owner_id"`

	// Content is the fact text.
	Content string `json:"content"`

	// Category is a free-form grouping label ("preference", "biography", ...).
	Category string `json:"category"`

	// Confidence is the extraction confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Embedding is the vector representation of Content. May be nil for
	// facts that have not been embedded yet; such facts are invisible to
	// the semantic leg.
	Embedding []float32 `json:"embedding,omitempty"`

	// CreatedAt is when the fact was stored.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the fact last appeared in assembled context.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Filter scopes a retrieval leg to one owner's facts.
type Filter struct {
	// OwnerID restricts results to one owner. Required.
	OwnerID string

	// Category restricts results to one category when non-empty.
	Category string

	// MinConfidence drops facts below this confidence.
	MinConfidence float64
}

// SemanticHit is one result from the semantic leg. Lower distance is a
// better match.
type SemanticHit struct {
	ID       string
	Distance float64
}

// KeywordHit is one result from the keyword leg. Higher score is a better
// match.
type KeywordHit struct {
	ID    string
	Score float64
}

// Store handles storage and retrieval of facts.
type Store interface {
	// Put stores facts. Existing facts with the same ID are replaced.
	Put(ctx context.Context, facts []Fact) error

	// Get retrieves facts by ID. Unknown IDs are skipped; the returned
	// slice preserves the order of the IDs that were found.
	Get(ctx context.Context, ids []string) ([]Fact, error)

	// SemanticSearch returns up to topK facts matching the filter with a
	// non-nil embedding, ordered by ascending vector distance.
	SemanticSearch(ctx context.Context, embedding []float32, filter Filter, topK int) ([]SemanticHit, error)

	// KeywordSearch returns up to topK facts matching the filter whose
	// content contains every term, ordered by descending relevance. An
	// empty term list yields no hits.
	KeywordSearch(ctx context.Context, terms []string, filter Filter, topK int) ([]KeywordHit, error)

	// Touch updates LastAccessedAt for the given facts. Unknown IDs are
	// ignored.
	Touch(ctx context.Context, ids []string, at time.Time) error

	// Close releases driver resources.
	Close() error
}
