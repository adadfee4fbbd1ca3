// Package llm defines the canonical request, response and streaming types
// shared by the provider clients, the router and the context assembler.
// Provider-specific wire formats are translated into these types at the
// client boundary so everything above it is provider-agnostic.
package llm

// Message roles. Insertion order in a message list is chronological and
// semantically meaningful.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name, possibly carrying a provider prefix (e.g. "ollama/llama3").
	// The router strips the prefix before dispatch.
	Model string `json:"model"`

	// Conversation messages in chronological order.
	Messages []Message `json:"messages"`

	// Whether to stream the response.
	Stream bool `json:"stream,omitempty"`

	// Sampling temperature.
	Temperature *float64 `json:"temperature,omitempty"`
}

// EmbeddingRequest represents a provider-agnostic embedding request.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}
