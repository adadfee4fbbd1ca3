package search_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/search"
)

var _ = Describe("Fuse", func() {
	semantic := func(ids ...string) []memory.SemanticHit {
		hits := make([]memory.SemanticHit, len(ids))
		for i, id := range ids {
			hits[i] = memory.SemanticHit{ID: id, Distance: float64(i)}
		}
		return hits
	}
	keyword := func(ids ...string) []memory.KeywordHit {
		hits := make([]memory.KeywordHit, len(ids))
		for i, id := range ids {
			hits[i] = memory.KeywordHit{ID: id, Score: float64(len(ids) - i)}
		}
		return hits
	}

	It("returns nothing for two empty legs", func() {
		Expect(search.Fuse(nil, nil, 0.6, 0.4)).To(BeEmpty())
	})

	It("ranks an id first in both legs above an id first in only one", func() {
		ids := search.Fuse(
			semantic("both", "semantic-only"),
			keyword("both", "keyword-only"),
			0.5, 0.5,
		)
		Expect(ids[0]).To(Equal("both"))
	})

	It("accumulates contributions from both legs", func() {
		// "b" is second in both legs; "a" and "c" are first in one leg
		// each. With equal weights, 2/(K+2) > 1/(K+1), so "b" wins.
		ids := search.Fuse(
			semantic("a", "b"),
			keyword("c", "b"),
			0.5, 0.5,
		)
		Expect(ids[0]).To(Equal("b"))
	})

	It("weights the legs asymmetrically", func() {
		ids := search.Fuse(
			semantic("s"),
			keyword("k"),
			0.6, 0.4,
		)
		Expect(ids).To(Equal([]string{"s", "k"}))

		ids = search.Fuse(
			semantic("s"),
			keyword("k"),
			0.4, 0.6,
		)
		Expect(ids).To(Equal([]string{"k", "s"}))
	})

	It("breaks exact ties by semantic rank, then keyword rank, then id", func() {
		// Equal weights, same rank in opposite legs: semantic presence
		// wins over keyword-only.
		ids := search.Fuse(
			semantic("s"),
			keyword("k"),
			0.5, 0.5,
		)
		Expect(ids).To(Equal([]string{"s", "k"}))
	})

	It("is deterministic for identical inputs", func() {
		sem := semantic("a", "b", "c", "d")
		kw := keyword("d", "c", "b", "a")

		first := search.Fuse(sem, kw, 0.6, 0.4)
		for i := 0; i < 20; i++ {
			Expect(search.Fuse(sem, kw, 0.6, 0.4)).To(Equal(first))
		}
	})

	It("preserves the order of an already fused single leg", func() {
		ids := search.Fuse(semantic("a", "b", "c"), nil, 0.6, 0.4)
		Expect(ids).To(Equal([]string{"a", "b", "c"}))
	})
})

var _ = Describe("NormalizeQuery", func() {
	It("lowercases, splits and strips punctuation", func() {
		Expect(search.NormalizeQuery("What's Alice's favorite COFFEE?")).
			To(Equal([]string{"whats", "alices", "favorite", "coffee"}))
	})

	It("drops terms that normalize to nothing", func() {
		Expect(search.NormalizeQuery("--- !!! coffee ???")).To(Equal([]string{"coffee"}))
	})

	It("returns nil for text with no usable terms", func() {
		Expect(search.NormalizeQuery("  ... !!! ")).To(BeNil())
		Expect(search.NormalizeQuery("")).To(BeNil())
	})

	It("caps the term list at ten", func() {
		terms := search.NormalizeQuery("a b c d e f g h i j k l m")
		Expect(terms).To(HaveLen(10))
		Expect(terms[9]).To(Equal("j"))
	})
})
