// Package inmemory provides a process-local fact store. It exists for tests
// and single-process development setups; nothing is persisted.
package inmemory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inkwellco/spool/pkg/memory"
)

// Store implements memory.Store with in-process maps and brute-force search.
type Store struct {
	mu    sync.RWMutex
	facts map[string]memory.Fact
}

// NewStore creates an empty in-memory fact store.
func NewStore() *Store {
	return &Store{facts: make(map[string]memory.Fact)}
}

// Put stores facts, replacing any existing facts with the same IDs.
func (s *Store) Put(_ context.Context, facts []memory.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fact := range facts {
		if fact.CreatedAt.IsZero() {
			fact.CreatedAt = time.Now().UTC()
		}
		if fact.LastAccessedAt.IsZero() {
			fact.LastAccessedAt = fact.CreatedAt
		}
		s.facts[fact.ID] = fact
	}
	return nil
}

// Get retrieves facts by ID, preserving the order of the IDs that exist.
func (s *Store) Get(_ context.Context, ids []string) ([]memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make([]memory.Fact, 0, len(ids))
	for _, id := range ids {
		if fact, ok := s.facts[id]; ok {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// SemanticSearch brute-forces cosine distance over every matching fact.
func (s *Store) SemanticSearch(_ context.Context, embedding []float32, filter memory.Filter, topK int) ([]memory.SemanticHit, error) {
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []memory.SemanticHit
	for _, fact := range s.facts {
		if !matchesFilter(fact, filter) || len(fact.Embedding) == 0 {
			continue
		}
		hits = append(hits, memory.SemanticHit{
			ID:       fact.ID,
			Distance: 1 - cosineSimilarity(embedding, fact.Embedding),
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].ID < hits[b].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// KeywordSearch requires every term to appear in the fact content and scores
// by total term occurrences.
func (s *Store) KeywordSearch(_ context.Context, terms []string, filter memory.Filter, topK int) ([]memory.KeywordHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []memory.KeywordHit
	for _, fact := range s.facts {
		if !matchesFilter(fact, filter) {
			continue
		}
		content := strings.ToLower(fact.Content)

		score := 0.0
		matched := true
		for _, term := range terms {
			count := strings.Count(content, strings.ToLower(term))
			if count == 0 {
				matched = false
				break
			}
			score += float64(count)
		}
		if matched {
			hits = append(hits, memory.KeywordHit{ID: fact.ID, Score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Touch updates LastAccessedAt for the given facts.
func (s *Store) Touch(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if fact, ok := s.facts[id]; ok {
			fact.LastAccessedAt = at
			s.facts[id] = fact
		}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func matchesFilter(fact memory.Fact, filter memory.Filter) bool {
	if fact.OwnerID != filter.OwnerID {
		return false
	}
	if filter.Category != "" && fact.Category != filter.Category {
		return false
	}
	return fact.Confidence >= filter.MinConfidence
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
