// Package openai implements the provider.Client interface against an
// OpenAI-compatible chat completions API. Streaming responses arrive in the
// event-delimited wire format and are normalized by pkg/stream.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/provider"
	"github.com/inkwellco/spool/pkg/stream"
)

const (
	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"

	// defaultTimeout bounds non-streaming calls.
	defaultTimeout = 2 * time.Minute

	// streamHeaderTimeout bounds how long a streaming call may take to start
	// producing a response. The stream itself stays open past this.
	streamHeaderTimeout = 30 * time.Second
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

// Config holds configuration for the OpenAI client.
type Config struct {
	// BaseURL is the API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds non-streaming requests. Defaults to 2m.
	Timeout time.Duration

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// New creates an OpenAI provider client.
func New(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			// No overall timeout: a healthy stream may stay open for minutes.
			// The header timeout still bounds a backend that accepts the
			// connection and then hangs before responding.
			Transport: &http.Transport{
				ResponseHeaderTimeout: streamHeaderTimeout,
			},
		},
		logger: logger,
	}
}

func (c *Client) Name() string { return provider.OpenAI }

// SupportsEmbeddings reports false: embeddings for retrieval are served by
// the configured embedder, and this deployment's OpenAI surface is
// chat-only.
func (c *Client) SupportsEmbeddings() bool { return false }

// Embed is unsupported on this provider.
func (c *Client) Embed(_ context.Context, _, _ string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", provider.ErrEmbeddingUnsupported, provider.OpenAI)
}

// EmbedBatch is unsupported on this provider.
func (c *Client) EmbedBatch(_ context.Context, _ string, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: %s", provider.ErrEmbeddingUnsupported, provider.OpenAI)
}

// chatRequest is the wire request for the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// chatResponse is the wire response for a non-streaming completion.
type chatResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletion performs a non-streaming chat completion.
func (c *Client) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := c.doJSON(ctx, c.httpClient, chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	resp := &llm.ChatResponse{
		Model:     parsed.Model,
		CreatedAt: time.Unix(parsed.Created, 0),
	}
	if len(parsed.Choices) > 0 {
		resp.Message = parsed.Choices[0].Message
		resp.StopReason = parsed.Choices[0].FinishReason
	}
	if parsed.Usage != nil {
		resp.Usage = &llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// StreamChatCompletion starts a streaming completion and hands the response
// body to the event-delimited decoder, which owns and closes it.
func (c *Client) StreamChatCompletion(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	body, err := c.doJSON(ctx, c.streamClient, chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return stream.DecodeEventStream(ctx, body, c.logger), nil
}

// modelsResponse is the wire response of the model listing endpoint.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
	} `json:"data"`
}

// ListModels returns the models the API currently serves.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listing models: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding models response: %w", err)
	}

	models := make([]llm.Model, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, llm.Model{
			Name:      m.ID,
			Provider:  provider.OpenAI,
			CreatedAt: time.Unix(m.Created, 0),
		})
	}
	return models, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

// doJSON posts payload to the chat completions endpoint and returns the
// response body on HTTP 200. On any other status the body is read, closed
// and folded into the error.
func (c *Client) doJSON(ctx context.Context, httpClient *http.Client, payload chatRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

var _ provider.Client = (*Client)(nil)
