package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdftalk/internal/embedding"
	"pdftalk/internal/helper"
	"pdftalk/internal/models"
)

// Record is one stored (vector, text, metadata) triple.
type Record struct {
	ID       string
	Values   []float32
	Text     string
	Metadata models.Metadata
}

// Store is a named vector index backend. Implementations are expected to be
// used by a single writer; there is no cross-call ordering guarantee when
// two ingestions target the same index.
type Store interface {
	// Ensure provisions the index if absent and blocks until it is ready.
	// It reuses a pre-existing index by name without validating dimension or
	// metric compatibility; a mismatch surfaces later as an Add error.
	Ensure(ctx context.Context, dimension int, metric string) error
	Exists(ctx context.Context) (bool, error)
	// Delete removes the index. An absent index is not an error.
	Delete(ctx context.Context) error
	Add(ctx context.Context, records []Record) error
	// Query returns at most topK results ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error)
}

// Indexer embeds chunk texts and writes them to a Store in batches.
type Indexer struct {
	store    Store
	embedder embedding.Embedder
}

func NewIndexer(store Store, embedder embedding.Embedder) *Indexer {
	return &Indexer{store: store, embedder: embedder}
}

// Upsert inserts chunks in consecutive batches of at most batchSize. Batches
// run strictly in order, each fully inserted before the next begins; a
// failing batch aborts the rest while already inserted batches stay in the
// index.
func (ix *Indexer) Upsert(ctx context.Context, chunks []models.Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]
		batchNum := start/batchSize + 1

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := ix.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: batch %d: %v", models.ErrUpsert, batchNum, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: batch %d: got %d vectors for %d texts", models.ErrUpsert, batchNum, len(vectors), len(batch))
		}

		records := make([]Record, len(batch))
		for i, chunk := range batch {
			records[i] = Record{
				ID:       helper.NewID(),
				Values:   vectors[i],
				Text:     chunk.Content,
				Metadata: chunk.Metadata,
			}
		}
		if err := ix.store.Add(ctx, records); err != nil {
			return fmt.Errorf("%w: batch %d: %v", models.ErrUpsert, batchNum, err)
		}
		log.Debug().Int("batch", batchNum).Int("records", len(records)).Msg("Batch indexed")
	}
	return nil
}
