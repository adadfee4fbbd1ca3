package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/breaker"
	"github.com/inkwellco/spool/pkg/llm"
)

// Router resolves a provider from a model identifier and dispatches calls
// through per-provider circuit breakers. A model name may carry an explicit
// provider prefix ("openai/gpt-4o", "ollama/llama3"); the prefix selects the
// provider and is stripped before dispatch. Names without a recognized
// prefix go to the configured default provider.
type Router struct {
	clients     map[string]Client
	defaultName string
	breakers    *breaker.Set
	modelCaches map[string]*ModelCache
	logger      *zap.Logger
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Clients are the provider backends, keyed by Client.Name.
	Clients []Client

	// Default is the provider used when a model name carries no prefix.
	Default string

	// Breakers is the shared breaker set. One breaker per provider name.
	Breakers *breaker.Set

	// ModelCacheTTL overrides the model list TTL. Defaults to one minute.
	ModelCacheTTL time.Duration

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewRouter creates a router over the given provider clients.
func NewRouter(config RouterConfig) (*Router, error) {
	if len(config.Clients) == 0 {
		return nil, errors.New("at least one provider client is required")
	}
	if config.Breakers == nil {
		config.Breakers = breaker.NewSet(breaker.Config{Logger: config.Logger})
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	clients := make(map[string]Client, len(config.Clients))
	caches := make(map[string]*ModelCache, len(config.Clients))
	for _, client := range config.Clients {
		clients[client.Name()] = client
		caches[client.Name()] = NewModelCache(ModelCacheConfig{
			TTL:    config.ModelCacheTTL,
			Fetch:  client.ListModels,
			Logger: config.Logger.With(zap.String("provider", client.Name())),
		})
	}

	defaultName := config.Default
	if defaultName == "" {
		defaultName = config.Clients[0].Name()
	}
	if _, ok := clients[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default provider %q not registered", ErrUnknownProvider, defaultName)
	}

	return &Router{
		clients:     clients,
		defaultName: defaultName,
		breakers:    config.Breakers,
		modelCaches: caches,
		logger:      config.Logger,
	}, nil
}

// Resolve returns the provider client for a model identifier plus the bare
// model name with any provider prefix stripped.
func (r *Router) Resolve(model string) (Client, string, error) {
	if name, rest, ok := strings.Cut(model, "/"); ok {
		if client, registered := r.clients[name]; registered {
			return client, rest, nil
		}
	}

	client, ok := r.clients[r.defaultName]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, r.defaultName)
	}
	return client, model, nil
}

// Embed dispatches a single-text embedding through the resolved provider.
func (r *Router) Embed(ctx context.Context, model, text string) ([]float32, error) {
	client, bare, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	if !client.SupportsEmbeddings() {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingUnsupported, client.Name())
	}

	var vec []float32
	err = r.breakers.Do(client.Name(), func() error {
		var opErr error
		vec, opErr = client.Embed(ctx, bare, text)
		return opErr
	})
	return vec, err
}

// EmbedBatch dispatches a batch embedding through the resolved provider.
func (r *Router) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, bare, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	if !client.SupportsEmbeddings() {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingUnsupported, client.Name())
	}

	var vecs [][]float32
	err = r.breakers.Do(client.Name(), func() error {
		var opErr error
		vecs, opErr = client.EmbedBatch(ctx, bare, texts)
		return opErr
	})
	return vecs, err
}

// ChatCompletion dispatches a non-streaming completion through the resolved
// provider.
func (r *Router) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	client, bare, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	routed := *req
	routed.Model = bare

	var resp *llm.ChatResponse
	err = r.breakers.Do(client.Name(), func() error {
		var opErr error
		resp, opErr = client.ChatCompletion(ctx, &routed)
		return opErr
	})
	return resp, err
}

// StreamChatCompletion dispatches a streaming completion through the
// resolved provider. The breaker accounts for the call at connection
// establishment: a refused or timed-out connect counts as a failure, while
// mid-stream transport errors surface as canonical error events on the
// channel. Resolving the breaker synchronously here means caller
// cancellation mid-stream can never leave breaker bookkeeping unresolved.
func (r *Router) StreamChatCompletion(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	client, bare, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	routed := *req
	routed.Model = bare
	routed.Stream = true

	var events <-chan llm.StreamEvent
	err = r.breakers.Do(client.Name(), func() error {
		var opErr error
		events, opErr = client.StreamChatCompletion(ctx, &routed)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListModels returns the models of every registered provider, served through
// the per-provider model caches. A provider whose listing fails contributes
// nothing; the call errors only when every provider fails.
func (r *Router) ListModels(ctx context.Context) ([]llm.Model, error) {
	names := make([]string, 0, len(r.modelCaches))
	for name := range r.modelCaches {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []llm.Model
	var firstErr error
	failures := 0

	for _, name := range names {
		cache := r.modelCaches[name]
		var listed []llm.Model
		err := r.breakers.Do(name, func() error {
			var opErr error
			listed, opErr = cache.Models(ctx)
			return opErr
		})
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Warn("listing models failed",
				zap.String("provider", name),
				zap.Error(err),
			)
			continue
		}
		models = append(models, listed...)
	}

	if failures == len(r.modelCaches) {
		return nil, firstErr
	}
	return models, nil
}

// RefreshModels forces a background re-fetch of every provider's model list.
func (r *Router) RefreshModels() {
	for _, cache := range r.modelCaches {
		cache.Refresh()
	}
}

// BreakerStates reports the current state of each provider's breaker.
func (r *Router) BreakerStates() map[string]breaker.State {
	states := make(map[string]breaker.State, len(r.clients))
	for name := range r.clients {
		states[name] = r.breakers.State(name)
	}
	return states
}

// Close releases every provider client.
func (r *Router) Close() error {
	var firstErr error
	for _, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
