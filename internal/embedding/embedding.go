package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"pdftalk/internal/config"
	"pdftalk/internal/models"
)

// Embedder maps text to fixed-dimension vectors, one vector per input,
// preserving order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type openAIEmbedder struct {
	inner     *embeddings.EmbedderImpl
	dimension int
}

// NewEmbedder creates an embedder backed by an OpenAI-compatible embeddings
// endpoint. The dimension is the one the index was provisioned with; the
// provider is expected to produce vectors of that length.
func NewEmbedder(cfg *config.EmbeddingConfig, dimension int) (Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(os.Getenv(cfg.APIKeyEnv)),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	inner, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	return &openAIEmbedder{inner: inner, dimension: dimension}, nil
}

func (e *openAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	return vectors, nil
}

func (e *openAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	return vector, nil
}

func (e *openAIEmbedder) Dimension() int {
	return e.dimension
}
