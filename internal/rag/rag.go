package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdftalk/internal/embedding"
	"pdftalk/internal/index"
	"pdftalk/internal/llm"
	"pdftalk/internal/models"
)

// RAG answers questions strictly from chunks retrieved out of the vector
// index. All retrieved chunk texts are stuffed into one prompt, so the
// effective context is bounded by topK times the chunk size.
type RAG struct {
	store     index.Store
	embedder  embedding.Embedder
	completer llm.Completer
	topK      int
}

func NewRAG(store index.Store, embedder embedding.Embedder, completer llm.Completer, topK int) *RAG {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &RAG{store: store, embedder: embedder, completer: completer, topK: topK}
}

// Answer embeds the question, retrieves the topK most similar chunks and
// asks the LLM to answer from them alone. The returned sources are in
// retrieval order. No retry on failure.
func (r *RAG) Answer(ctx context.Context, question string) (*models.PromptResponse, error) {
	queryEmbedding, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAnswer, err)
	}

	results, err := r.store.Query(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAnswer, err)
	}
	log.Debug().Int("results", len(results)).Msg("Retrieved context chunks")

	var contextBlock strings.Builder
	sources := make([]models.Chunk, 0, len(results))
	for _, res := range results {
		contextBlock.WriteString(res.Chunk.Content + "\n\n")
		sources = append(sources, res.Chunk)
	}

	prompt := fmt.Sprintf(models.RAGPromptTemplate, contextBlock.String(), question)
	content, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAnswer, err)
	}

	return &models.PromptResponse{
		Query:   question,
		Content: strings.TrimSpace(content),
		Sources: sources,
	}, nil
}
