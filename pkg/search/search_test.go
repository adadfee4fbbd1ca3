package search_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/memory/inmemory"
	"github.com/inkwellco/spool/pkg/search"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Close() error { return nil }

var _ = Describe("Searcher", func() {
	var (
		ctx      context.Context
		store    *inmemory.Store
		embedder *fakeEmbedder
		searcher *search.Searcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		embedder = &fakeEmbedder{vector: []float32{1, 0, 0}}
		searcher = search.NewSearcher(search.Config{
			Embedder: embedder,
			Store:    store,
		})

		Expect(store.Put(ctx, []memory.Fact{
			{ID: "f1", OwnerID: "alice", Category: "preference", Confidence: 0.9, Content: "prefers dark roast coffee", Embedding: []float32{1, 0, 0}},
			{ID: "f2", OwnerID: "alice", Category: "preference", Confidence: 0.9, Content: "drinks tea on weekends", Embedding: []float32{0, 1, 0}},
			{ID: "f3", OwnerID: "alice", Category: "biography", Confidence: 0.7, Content: "works as a marine biologist", Embedding: []float32{0, 0, 1}},
			{ID: "f4", OwnerID: "bob", Category: "preference", Confidence: 0.9, Content: "coffee every morning", Embedding: []float32{1, 0, 0}},
		})).To(Succeed())
	})

	It("returns full records best first, scoped to the owner", func() {
		facts, err := searcher.Search(ctx, "alice", "coffee", search.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).NotTo(BeEmpty())
		Expect(facts[0].ID).To(Equal("f1"))
		for _, fact := range facts {
			Expect(fact.OwnerID).To(Equal("alice"))
			Expect(fact.Content).NotTo(BeEmpty())
		}
	})

	It("aborts the whole search when the query embedding fails", func() {
		embedder.err = errors.New("embedder offline")
		_, err := searcher.Search(ctx, "alice", "coffee", search.Options{})
		Expect(err).To(MatchError(search.ErrQueryEmbedding))
	})

	It("still runs the semantic leg when the query normalizes to no terms", func() {
		facts, err := searcher.Search(ctx, "alice", "!!!", search.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).NotTo(BeEmpty())
		Expect(facts[0].ID).To(Equal("f1"))
	})

	It("returns an empty result when nothing matches", func() {
		facts, err := searcher.Search(ctx, "nobody", "coffee", search.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(BeEmpty())
	})

	It("applies category and confidence options", func() {
		facts, err := searcher.Search(ctx, "alice", "coffee", search.Options{
			Category: "biography",
		})
		Expect(err).NotTo(HaveOccurred())
		for _, fact := range facts {
			Expect(fact.Category).To(Equal("biography"))
		}

		facts, err = searcher.Search(ctx, "alice", "coffee", search.Options{
			MinConfidence: 0.8,
		})
		Expect(err).NotTo(HaveOccurred())
		for _, fact := range facts {
			Expect(fact.Confidence).To(BeNumerically(">=", 0.8))
		}
	})

	It("caps results at the limit", func() {
		facts, err := searcher.Search(ctx, "alice", "coffee", search.Options{Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(HaveLen(1))
	})

	It("silently drops fused ids with no resolvable record", func() {
		phantom := &phantomStore{Store: store, extraID: "ghost"}
		searcher = search.NewSearcher(search.Config{Embedder: embedder, Store: phantom})

		facts, err := searcher.Search(ctx, "alice", "coffee", search.Options{Limit: 50})
		Expect(err).NotTo(HaveOccurred())
		for _, fact := range facts {
			Expect(fact.ID).NotTo(Equal("ghost"))
		}
		Expect(facts).NotTo(BeEmpty())
	})
})

// phantomStore injects a semantic hit whose record does not exist.
type phantomStore struct {
	*inmemory.Store
	extraID string
}

func (p *phantomStore) SemanticSearch(ctx context.Context, embedding []float32, filter memory.Filter, topK int) ([]memory.SemanticHit, error) {
	hits, err := p.Store.SemanticSearch(ctx, embedding, filter, topK)
	if err != nil {
		return nil, err
	}
	return append([]memory.SemanticHit{{ID: p.extraID, Distance: 0}}, hits...), nil
}
