package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Embedder turns query text into a vector via the Ollama embed endpoint.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, "embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

// Synthesizer generates grounded answers. The model travels with every call
// so evaluation runs can exercise several models through one client.
type Synthesizer struct {
	client *Client
}

func NewSynthesizer(client *Client) *Synthesizer {
	return &Synthesizer{client: client}
}

func (s *Synthesizer) Complete(ctx context.Context, model domain.ModelConfig, systemPrompt, userText string) (string, error) {
	if model.ID == "" {
		return "", fmt.Errorf("model id is required")
	}

	request := map[string]any{
		"model":  model.ID,
		"system": systemPrompt,
		"prompt": userText,
		"stream": false,
	}
	if model.MaxTokens > 0 {
		request["options"] = map[string]any{"num_predict": model.MaxTokens}
	}

	var response struct {
		Response string `json:"response"`
	}
	err := s.client.execute(ctx, "generate", func(callCtx context.Context) error {
		return s.client.postJSON(callCtx, "/api/generate", request, &response, "generate")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "ollama_"+operation, fn, classifyOllamaError)
}
