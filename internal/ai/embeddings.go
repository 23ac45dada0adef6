package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmbedderUnavailable is returned when no embedding client is configured.
// Callers treat it as "skip embedding", never as a fatal error.
var ErrEmbedderUnavailable = errors.New("embedding provider unavailable")

// EmbeddingClient holds one constructed Gemini client for embedding calls.
type EmbeddingClient struct {
	client *genai.Client
	model  string
}

// NewEmbeddingClient builds the embedding client once at startup. An empty
// API key yields ErrEmbedderUnavailable; the service then runs in
// embedding-degraded mode.
func NewEmbeddingClient(ctx context.Context, apiKey, model string) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, ErrEmbedderUnavailable
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &EmbeddingClient{client: client, model: model}, nil
}

// Embed returns an embedding vector for the given text.
func (ec *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	model := ec.client.EmbeddingModel(ec.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying client
func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}
