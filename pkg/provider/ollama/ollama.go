// Package ollama implements the provider.Client interface against Ollama's
// HTTP API. Streaming responses arrive as newline-delimited JSON and are
// normalized by pkg/stream. Unlike the OpenAI client, this provider serves
// embeddings.
package ollama

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
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// defaultTimeout bounds non-streaming calls. Local models can be slow to
	// load on first use.
	defaultTimeout = 5 * time.Minute

	// streamHeaderTimeout bounds how long a streaming call may take to start
	// producing a response.
	streamHeaderTimeout = 2 * time.Minute
)

// Client talks to an Ollama server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

// Config holds configuration for the Ollama client.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds non-streaming requests. Defaults to 5m.
	Timeout time.Duration

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// New creates an Ollama provider client.
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
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: streamHeaderTimeout,
			},
		},
		logger: logger,
	}
}

func (c *Client) Name() string { return provider.Ollama }

func (c *Client) SupportsEmbeddings() bool { return true }

// embedRequest is the wire request for Ollama's embedding endpoint. Input is
// a single string or a list of strings.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the wire response of the embedding endpoint: one
// equal-length vector per input.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed converts one text into a vector embedding.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, model, text, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts several texts into vector embeddings, one per input,
// in input order.
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, model, texts, len(texts))
}

func (c *Client) embed(ctx context.Context, model string, input any, want int) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(parsed.Embeddings) != want {
		return nil, fmt.Errorf("ollama returned %d embeddings, want %d", len(parsed.Embeddings), want)
	}

	return parsed.Embeddings, nil
}

// chatRequest is the wire request for Ollama's chat endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// chatResponse is the wire response of a non-streaming chat call.
type chatResponse struct {
	Model           string      `json:"model"`
	Message         llm.Message `json:"message"`
	Done            bool        `json:"done"`
	CreatedAt       time.Time   `json:"created_at"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// ChatCompletion performs a non-streaming chat completion.
func (c *Client) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := c.doChat(ctx, c.httpClient, req, false)
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
		Message:   parsed.Message,
		CreatedAt: parsed.CreatedAt,
	}
	if parsed.Done {
		resp.StopReason = "stop"
	}
	if parsed.PromptEvalCount > 0 || parsed.EvalCount > 0 {
		resp.Usage = &llm.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		}
	}
	return resp, nil
}

// StreamChatCompletion starts a streaming completion and hands the response
// body to the NDJSON decoder, which owns and closes it.
func (c *Client) StreamChatCompletion(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	body, err := c.doChat(ctx, c.streamClient, req, true)
	if err != nil {
		return nil, err
	}

	return stream.DecodeNDJSON(ctx, body, c.logger), nil
}

// tagsResponse is the wire response of the model listing endpoint.
type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// ListModels returns the models the Ollama server currently serves.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listing models: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding tags response: %w", err)
	}

	models := make([]llm.Model, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, llm.Model{
			Name:      m.Name,
			Provider:  provider.Ollama,
			CreatedAt: m.ModifiedAt,
		})
	}
	return models, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

// doChat posts a chat request and returns the response body on HTTP 200.
func (c *Client) doChat(ctx context.Context, httpClient *http.Client, req *llm.ChatRequest, streaming bool) (io.ReadCloser, error) {
	payload := chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   streaming,
	}
	if req.Temperature != nil {
		payload.Options = &chatOptions{Temperature: req.Temperature}
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

var _ provider.Client = (*Client)(nil)
