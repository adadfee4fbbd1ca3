package docs

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/tokens"
)

// Chunk is one excerpt of an attached document.
type Chunk struct {
	// Filename is the document the chunk belongs to.
	Filename string

	// Section is the heading or chunk label within the document.
	Section string

	// Content is the chunk text.
	Content string
}

// MemoryRetriever implements Retriever over chunks registered in process
// memory. Chunks are scored by query term overlap and packed greedily under
// the token budget, best first.
type MemoryRetriever struct {
	logger *zap.Logger

	mu     sync.RWMutex
	chunks map[string][]Chunk
}

// NewMemoryRetriever creates an empty in-process retriever.
func NewMemoryRetriever(logger *zap.Logger) *MemoryRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryRetriever{
		logger: logger,
		chunks: make(map[string][]Chunk),
	}
}

// Attach registers document chunks for a conversation.
func (r *MemoryRetriever) Attach(conversationID string, chunks ...Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[conversationID] = append(r.chunks[conversationID], chunks...)
}

// RetrieveWithSources returns the chunks most relevant to the query that fit
// within tokenBudget, concatenated in relevance order.
func (r *MemoryRetriever) RetrieveWithSources(_ context.Context, conversationID, query string, tokenBudget int) (string, []Source, error) {
	if tokenBudget <= 0 {
		return "", nil, nil
	}

	r.mu.RLock()
	chunks := r.chunks[conversationID]
	r.mu.RUnlock()
	if len(chunks) == 0 {
		return "", nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return "", nil, nil
	}

	type scored struct {
		chunk Chunk
		score int
		order int
	}
	var matches []scored
	for i, chunk := range chunks {
		content := strings.ToLower(chunk.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(content, term)
		}
		if score > 0 {
			matches = append(matches, scored{chunk: chunk, score: score, order: i})
		}
	}
	if len(matches) == 0 {
		return "", nil, nil
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].score != matches[b].score {
			return matches[a].score > matches[b].score
		}
		return matches[a].order < matches[b].order
	})

	var (
		builder   strings.Builder
		sources   []Source
		remaining = tokenBudget
	)
	for _, m := range matches {
		cost := tokens.Estimate(m.chunk.Content)
		if cost > remaining {
			continue
		}
		remaining -= cost

		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(m.chunk.Content)
		sources = append(sources, Source{
			Index:    len(sources) + 1,
			Filename: m.chunk.Filename,
			Section:  m.chunk.Section,
			Content:  m.chunk.Content,
		})
	}

	r.logger.Debug("retrieved document excerpts",
		zap.String("conversation_id", conversationID),
		zap.Int("excerpts", len(sources)),
	)

	return builder.String(), sources, nil
}
