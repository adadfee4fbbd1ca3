// Package provider defines the uniform client interface the router dispatches
// chat, embedding and model-listing calls through. Each provider subpackage
// implements the interface against its own HTTP API and streaming wire
// format, normalizing responses into the pkg/llm types.
package provider

import (
	"context"

	"github.com/inkwellco/spool/pkg/llm"
)

// Canonical provider names.
const (
	OpenAI = "openai"
	Ollama = "ollama"
)

// Client is the capability set every provider backend exposes. Providers
// that do not support embeddings return ErrEmbeddingUnsupported from the
// embedding operations and false from SupportsEmbeddings.
type Client interface {
	// Name returns the canonical provider name (e.g. "openai", "ollama").
	Name() string

	// SupportsEmbeddings reports whether the embedding operations work.
	SupportsEmbeddings() bool

	// Embed converts one text into a vector embedding.
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// EmbedBatch converts several texts into equal-length vector embeddings,
	// one per input, in input order.
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)

	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// StreamChatCompletion starts a streaming chat completion. The returned
	// channel delivers chunks in arrival order and is closed after exactly
	// one terminal event. Cancelling ctx stops delivery and releases the
	// transport.
	StreamChatCompletion(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error)

	// ListModels returns the models this provider currently serves.
	ListModels(ctx context.Context) ([]llm.Model, error)

	// Close releases any resources held by the client.
	Close() error
}
