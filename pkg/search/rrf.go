package search

import (
	"sort"

	"github.com/inkwellco/spool/pkg/memory"
)

// rrfK is the Reciprocal Rank Fusion damping constant. Larger values
// flatten the influence of rank differences between candidates.
const rrfK = 60

// fusedCandidate tracks one candidate's combined score and its 1-based rank
// in each source list (0 when absent from that list).
type fusedCandidate struct {
	id           string
	score        float64
	semanticRank int
	keywordRank  int
}

// Fuse combines the two retrieval legs via Reciprocal Rank Fusion. Each
// candidate contributes weight/(K+rank) per list it appears in; candidates
// in both lists accumulate both contributions. The result is ordered best
// first: by descending fused score, then ascending semantic rank, then
// ascending keyword rank, then ID. Absence from a list ranks after any
// presence in it.
func Fuse(semantic []memory.SemanticHit, keyword []memory.KeywordHit, semanticWeight, keywordWeight float64) []string {
	candidates := make(map[string]*fusedCandidate, len(semantic)+len(keyword))

	for i, hit := range semantic {
		rank := i + 1
		candidates[hit.ID] = &fusedCandidate{
			id:           hit.ID,
			score:        semanticWeight / float64(rrfK+rank),
			semanticRank: rank,
		}
	}

	for i, hit := range keyword {
		rank := i + 1
		c, ok := candidates[hit.ID]
		if !ok {
			c = &fusedCandidate{id: hit.ID}
			candidates[hit.ID] = c
		}
		c.score += keywordWeight / float64(rrfK+rank)
		c.keywordRank = rank
	}

	fused := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		fused = append(fused, c)
	}

	sort.Slice(fused, func(a, b int) bool {
		ca, cb := fused[a], fused[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		if ra, rb := missingLast(ca.semanticRank), missingLast(cb.semanticRank); ra != rb {
			return ra < rb
		}
		if ra, rb := missingLast(ca.keywordRank), missingLast(cb.keywordRank); ra != rb {
			return ra < rb
		}
		return ca.id < cb.id
	})

	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.id
	}
	return ids
}

func missingLast(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}
