package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fieldscope/specmatch/internal/domain"
)

// Embedding dimensions by OpenAI model name.
const (
	dimSmall = 1536
	dimLarge = 3072
)

// OpenAIProvider embeds text via the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIProvider creates a provider for the given model.
// Supported models: text-embedding-3-small (default), text-embedding-3-large.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai provider requires an API key")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	dim := dimSmall
	if model == string(openai.LargeEmbedding3) {
		dim = dimLarge
	}

	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}, nil
}

// Encode embeds texts in a single batched API call. Failures are wrapped as
// domain.ErrEmbeddingProvider so callers can treat them as retryable.
func (p *OpenAIProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProvider, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		Normalize(v)
		vectors[d.Index] = v
	}
	return vectors, nil
}

// Dimension returns the embedding vector dimension.
func (p *OpenAIProvider) Dimension() int {
	return p.dim
}

// ModelID returns the model identifier.
func (p *OpenAIProvider) ModelID() string {
	return "openai/" + p.model
}
