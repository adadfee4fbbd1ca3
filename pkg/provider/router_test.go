package provider

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/breaker"
	"github.com/inkwellco/spool/pkg/llm"
)

// fakeClient is a scripted provider client for router specs.
type fakeClient struct {
	name       string
	embeddings bool

	chatCalls   []llm.ChatRequest
	chatErr     error
	streamCalls []llm.ChatRequest
	listCalls   int
	listModels  []llm.Model
	listErr     error
}

func (f *fakeClient) Name() string             { return f.name }
func (f *fakeClient) SupportsEmbeddings() bool { return f.embeddings }

func (f *fakeClient) Embed(_ context.Context, model, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f *fakeClient) EmbedBatch(_ context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeClient) ChatCompletion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.chatCalls = append(f.chatCalls, *req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &llm.ChatResponse{
		Model:   req.Model,
		Message: llm.Message{Role: llm.RoleAssistant, Content: "ok from " + f.name},
	}, nil
}

func (f *fakeClient) StreamChatCompletion(_ context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	f.streamCalls = append(f.streamCalls, *req)
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.Chunk("hi")
	ch <- llm.Done()
	close(ch)
	return ch, nil
}

func (f *fakeClient) ListModels(_ context.Context) ([]llm.Model, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listModels, nil
}

func (f *fakeClient) Close() error { return nil }

var _ = Describe("Router", func() {
	var (
		ctx    context.Context
		openai *fakeClient
		ollama *fakeClient
		router *Router
	)

	BeforeEach(func() {
		ctx = context.Background()
		openai = &fakeClient{
			name:       "openai",
			listModels: []llm.Model{{Name: "gpt-4o", Provider: "openai"}},
		}
		ollama = &fakeClient{
			name:       "ollama",
			embeddings: true,
			listModels: []llm.Model{{Name: "llama3", Provider: "ollama"}},
		}

		var err error
		router, err = NewRouter(RouterConfig{
			Clients: []Client{openai, ollama},
			Default: "ollama",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Resolve", func() {
		It("selects a provider by explicit prefix and strips it", func() {
			client, bare, err := router.Resolve("openai/gpt-4o")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Name()).To(Equal("openai"))
			Expect(bare).To(Equal("gpt-4o"))
		})

		It("falls back to the default provider without a prefix", func() {
			client, bare, err := router.Resolve("llama3")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Name()).To(Equal("ollama"))
			Expect(bare).To(Equal("llama3"))
		})

		It("treats an unrecognized prefix as part of the model name", func() {
			client, bare, err := router.Resolve("library/llama3")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Name()).To(Equal("ollama"))
			Expect(bare).To(Equal("library/llama3"))
		})
	})

	Describe("ChatCompletion", func() {
		It("dispatches with the provider prefix stripped", func() {
			resp, err := router.ChatCompletion(ctx, &llm.ChatRequest{
				Model:    "openai/gpt-4o",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Message.Content).To(Equal("ok from openai"))
			Expect(openai.chatCalls).To(HaveLen(1))
			Expect(openai.chatCalls[0].Model).To(Equal("gpt-4o"))
		})

		It("does not mutate the caller's request", func() {
			req := &llm.ChatRequest{Model: "openai/gpt-4o"}
			_, err := router.ChatCompletion(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Model).To(Equal("openai/gpt-4o"))
		})
	})

	Describe("StreamChatCompletion", func() {
		It("forces streaming on and returns the provider's event channel", func() {
			events, err := router.StreamChatCompletion(ctx, &llm.ChatRequest{Model: "ollama/llama3"})
			Expect(err).NotTo(HaveOccurred())

			var got []llm.StreamEvent
			for ev := range events {
				got = append(got, ev)
			}
			Expect(got).To(HaveLen(2))
			Expect(got[0].Text).To(Equal("hi"))
			Expect(got[1].Type).To(Equal(llm.EventDone))
			Expect(ollama.streamCalls[0].Stream).To(BeTrue())
		})
	})

	Describe("embedding operations", func() {
		It("routes embeddings to providers that support them", func() {
			vec, err := router.Embed(ctx, "ollama/nomic-embed-text", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{1, 2, 3}))
		})

		It("returns an explicit unsupported error otherwise", func() {
			_, err := router.Embed(ctx, "openai/text-embedding-3-small", "hello")
			Expect(err).To(MatchError(ErrEmbeddingUnsupported))

			_, err = router.EmbedBatch(ctx, "openai/text-embedding-3-small", []string{"a"})
			Expect(err).To(MatchError(ErrEmbeddingUnsupported))
		})
	})

	Describe("circuit breaking", func() {
		It("opens the provider's breaker after repeated failures", func() {
			clock := time.Unix(1700000000, 0)
			set := breaker.NewSet(breaker.Config{
				MaxFailures: 2,
				Window:      time.Minute,
				Cooldown:    30 * time.Second,
				Now:         func() time.Time { return clock },
			})

			openai.chatErr = errors.New("upstream down")
			r, err := NewRouter(RouterConfig{
				Clients:  []Client{openai, ollama},
				Default:  "ollama",
				Breakers: set,
			})
			Expect(err).NotTo(HaveOccurred())

			req := &llm.ChatRequest{Model: "openai/gpt-4o"}
			_, err = r.ChatCompletion(ctx, req)
			Expect(err).To(HaveOccurred())
			_, err = r.ChatCompletion(ctx, req)
			Expect(err).To(HaveOccurred())

			// Breaker is open now: the client is no longer invoked.
			calls := len(openai.chatCalls)
			_, err = r.ChatCompletion(ctx, req)
			Expect(err).To(MatchError(breaker.ErrOpen))
			Expect(openai.chatCalls).To(HaveLen(calls))

			// The other provider is unaffected.
			_, err = r.ChatCompletion(ctx, &llm.ChatRequest{Model: "llama3"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("ListModels", func() {
		It("merges model lists across providers", func() {
			models, err := router.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(models))
			for _, m := range models {
				names = append(names, m.Name)
			}
			Expect(names).To(ConsistOf("gpt-4o", "llama3"))
		})

		It("orders the merged list by provider name", func() {
			for range 10 {
				models, err := router.ListModels(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(models).To(HaveLen(2))
				Expect(models[0].Provider).To(Equal("ollama"))
				Expect(models[1].Provider).To(Equal("openai"))
			}
		})

		It("serves repeated listings from the model cache", func() {
			_, err := router.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = router.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(openai.listCalls).To(Equal(1))
			Expect(ollama.listCalls).To(Equal(1))
		})

		It("degrades to the providers that answered", func() {
			openai.listErr = errors.New("listing failed")
			r, err := NewRouter(RouterConfig{Clients: []Client{openai, ollama}, Default: "ollama"})
			Expect(err).NotTo(HaveOccurred())

			models, err := r.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))
			Expect(models[0].Name).To(Equal("llama3"))
		})

		It("errors only when every provider fails", func() {
			openai.listErr = errors.New("a down")
			ollama.listErr = errors.New("b down")
			r, err := NewRouter(RouterConfig{Clients: []Client{openai, ollama}, Default: "ollama"})
			Expect(err).NotTo(HaveOccurred())

			_, err = r.ListModels(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	It("rejects a default provider that is not registered", func() {
		_, err := NewRouter(RouterConfig{Clients: []Client{openai}, Default: "missing"})
		Expect(err).To(MatchError(ErrUnknownProvider))
	})
})
