package retriever

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings endpoint.
type OpenAIEmbedder struct {
	api   *openai.Client
	model string
}

// NewOpenAIEmbedder builds an embedder for the given provider. The API key
// is read from the {PROVIDER}_API_KEY environment variable; baseURL may be
// empty for the default OpenAI endpoint.
func NewOpenAIEmbedder(provider, baseURL, model string) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("embedding model must not be empty")
	}

	key := os.Getenv(strings.ToUpper(provider) + "_API_KEY")
	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIEmbedder{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

// Embed converts a single text string into a vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding response contained no vector")
	}
	return resp.Data[0].Embedding, nil
}
