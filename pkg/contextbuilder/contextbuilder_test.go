package contextbuilder_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/contextbuilder"
	"github.com/inkwellco/spool/pkg/docs"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/memory"
	meminmemory "github.com/inkwellco/spool/pkg/memory/inmemory"
	"github.com/inkwellco/spool/pkg/search"
	"github.com/inkwellco/spool/pkg/storage"
	"github.com/inkwellco/spool/pkg/storage/inmemory"
	"github.com/inkwellco/spool/pkg/tokens"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) Close() error { return nil }

// fifteenTokenMessage estimates to exactly 15 tokens: round(54/4*1.1) = 15.
var fifteenTokenMessage = strings.Repeat("a", 54)

var _ = Describe("Assembler", func() {
	var (
		ctx      context.Context
		messages *inmemory.Driver
	)

	seedMessages := func(contents ...string) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, content := range contents {
			role := llm.RoleUser
			if i%2 == 1 {
				role = llm.RoleAssistant
			}
			Expect(messages.CreateMessage(ctx, &storage.Message{
				ConversationID: "conv-1",
				Role:           role,
				Content:        content,
				CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			})).To(Succeed())
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		messages = inmemory.NewDriver()
	})

	Describe("message windowing", func() {
		It("keeps all three fifteen-token messages under the default budget", func() {
			seedMessages(fifteenTokenMessage, fifteenTokenMessage, fifteenTokenMessage)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "hello",
				TokenBudget:    4000,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(4))
			Expect(result.Messages[0].Role).To(Equal(llm.RoleSystem))
			for _, msg := range result.Messages[1:] {
				Expect(msg.Content).To(Equal(fifteenTokenMessage))
			}
		})

		It("truncates all messages when the budget cannot cover the reserve", func() {
			seedMessages(fifteenTokenMessage, fifteenTokenMessage, fifteenTokenMessage)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "hello",
				TokenBudget:    50,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(1))
			Expect(result.Messages[0].Role).To(Equal(llm.RoleSystem))
		})

		It("retains the newest messages that fit, ending with the newest", func() {
			seedMessages("oldest "+fifteenTokenMessage, fifteenTokenMessage, "newest")
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Messages:        messages,
				ResponseReserve: 10,
			})

			// Budget covers the system prompt, the reserve and roughly one
			// short message.
			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID:     "conv-1",
				UserID:             "alice",
				CustomSystemPrompt: "sys",
				TokenBudget:        25,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(2))
			Expect(result.Messages[1].Content).To(Equal("newest"))
		})

		It("keeps the assembled estimate within budget minus reserve", func() {
			long := strings.Repeat("b", 400)
			seedMessages(long, long, long, long, long, long, long, long, long, long)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			budget := 500
			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID:     "conv-1",
				UserID:             "alice",
				CustomSystemPrompt: "sys",
				TokenBudget:        budget,
			})
			Expect(err).NotTo(HaveOccurred())

			total := 0
			for _, msg := range result.Messages {
				total += tokens.Estimate(msg.Content)
			}
			Expect(total).To(BeNumerically("<=", budget-contextbuilder.DefaultResponseReserve))
			Expect(len(result.Messages)).To(BeNumerically("<", 11))
		})

		It("preserves chronological order among kept messages", func() {
			seedMessages("one", "two", "three")
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[1].Content).To(Equal("one"))
			Expect(result.Messages[2].Content).To(Equal("two"))
			Expect(result.Messages[3].Content).To(Equal("three"))
		})
	})

	Describe("summaries", func() {
		It("emits the summary as a second system message", func() {
			seedMessages("latest turn")
			Expect(messages.PutSummary(ctx, &storage.Summary{
				ConversationID: "conv-1",
				Content:        "earlier the user asked about billing",
			})).To(Succeed())
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(3))
			Expect(result.Messages[1].Role).To(Equal(llm.RoleSystem))
			Expect(result.Messages[1].Content).To(ContainSubstring("billing"))
			Expect(result.Messages[2].Content).To(Equal("latest turn"))
		})
	})

	Describe("fact retrieval", func() {
		var store *meminmemory.Store

		newSearcher := func(embedder *stubEmbedder) *search.Searcher {
			return search.NewSearcher(search.Config{Embedder: embedder, Store: store})
		}

		BeforeEach(func() {
			store = meminmemory.NewStore()
			Expect(store.Put(ctx, []memory.Fact{
				{ID: "f1", OwnerID: "alice", Category: "preference", Confidence: 0.9, Content: "prefers dark roast coffee", Embedding: []float32{1, 0, 0}},
			})).To(Succeed())
		})

		It("appends formatted facts under the header", func() {
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Searcher: newSearcher(&stubEmbedder{vector: []float32{1, 0, 0}}),
				Store:    store,
				Messages: messages,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "coffee",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[0].Content).To(ContainSubstring("Relevant facts about the user:"))
			Expect(result.Messages[0].Content).To(ContainSubstring("- [preference] prefers dark roast coffee"))
		})

		It("degrades to an empty contribution when search fails", func() {
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Searcher: newSearcher(&stubEmbedder{err: errors.New("embedder offline")}),
				Store:    store,
				Messages: messages,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "coffee",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[0].Content).NotTo(ContainSubstring("Relevant facts"))
		})

		It("skips retrieval entirely for an empty query", func() {
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Searcher: newSearcher(&stubEmbedder{vector: []float32{1, 0, 0}}),
				Store:    store,
				Messages: messages,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[0].Content).NotTo(ContainSubstring("Relevant facts"))
		})

		It("touches retrieved facts asynchronously", func() {
			at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Searcher: newSearcher(&stubEmbedder{vector: []float32{1, 0, 0}}),
				Store:    store,
				Messages: messages,
				Now:      func() time.Time { return at },
			})

			_, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "coffee",
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() time.Time {
				facts, err := store.Get(ctx, []string{"f1"})
				Expect(err).NotTo(HaveOccurred())
				return facts[0].LastAccessedAt
			}).Should(Equal(at))
		})
	})

	Describe("configured defaults", func() {
		It("falls back to the configured token budget when the request carries none", func() {
			seedMessages(fifteenTokenMessage, fifteenTokenMessage, fifteenTokenMessage)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Messages:    messages,
				TokenBudget: 50,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "hello",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(1))
			Expect(result.Messages[0].Role).To(Equal(llm.RoleSystem))
		})

		It("lets the request budget override the configured one", func() {
			seedMessages(fifteenTokenMessage, fifteenTokenMessage, fifteenTokenMessage)
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Messages:    messages,
				TokenBudget: 50,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "hello",
				TokenBudget:    4000,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(HaveLen(4))
		})

		It("applies configured search options to fact retrieval", func() {
			store := meminmemory.NewStore()
			Expect(store.Put(ctx, []memory.Fact{
				{ID: "f1", OwnerID: "alice", Category: "preference", Confidence: 0.9, Content: "prefers dark roast coffee", Embedding: []float32{1, 0, 0}},
				{ID: "f2", OwnerID: "alice", Category: "preference", Confidence: 0.2, Content: "might like tea", Embedding: []float32{1, 0, 0}},
			})).To(Succeed())
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Searcher: search.NewSearcher(search.Config{
					Embedder: &stubEmbedder{vector: []float32{1, 0, 0}},
					Store:    store,
				}),
				Store:         store,
				Messages:      messages,
				SearchOptions: search.Options{MinConfidence: 0.5},
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "coffee",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[0].Content).To(ContainSubstring("prefers dark roast coffee"))
			Expect(result.Messages[0].Content).NotTo(ContainSubstring("might like tea"))
		})
	})

	Describe("document retrieval", func() {
		It("appends excerpts and returns citation sources", func() {
			retriever := docs.NewMemoryRetriever(nil)
			retriever.Attach("conv-1", docs.Chunk{
				Filename: "handbook.md",
				Section:  "Billing",
				Content:  "invoices are sent monthly",
			})
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{
				Messages:  messages,
				Retriever: retriever,
			})

			result, err := assembler.BuildContext(ctx, contextbuilder.Request{
				ConversationID: "conv-1",
				UserID:         "alice",
				CurrentQuery:   "invoices",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages[0].Content).To(ContainSubstring("Relevant document excerpts:"))
			Expect(result.Messages[0].Content).To(ContainSubstring("invoices are sent monthly"))
			Expect(result.Sources).To(HaveLen(1))
			Expect(result.Sources[0].Filename).To(Equal("handbook.md"))
		})
	})

	Describe("determinism", func() {
		It("produces identical output for identical inputs", func() {
			seedMessages("one", "two", "three")
			assembler := contextbuilder.NewAssembler(contextbuilder.Config{Messages: messages})

			req := contextbuilder.Request{ConversationID: "conv-1", UserID: "alice", CurrentQuery: "hello"}
			first, err := assembler.BuildContext(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 5; i++ {
				again, err := assembler.BuildContext(ctx, req)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.Messages).To(Equal(first.Messages))
			}
		})
	})
})
