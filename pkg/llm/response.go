package llm

import "time"

// Usage captures token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse represents a provider-agnostic chat completion response.
type ChatResponse struct {
	Model      string    `json:"model"`
	Message    Message   `json:"message"`
	StopReason string    `json:"stop_reason,omitempty"`
	Usage      *Usage    `json:"usage,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Model describes one model available from a provider.
type Model struct {
	// Name is the bare model name as the provider reports it.
	Name string `json:"name"`

	// Provider is the canonical provider name serving this model.
	Provider string `json:"provider"`

	// CreatedAt is when the provider created or last modified the model,
	// zero when the provider does not report it.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ErrorResponse is the JSON error body returned by the HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}
