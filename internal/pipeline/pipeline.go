package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"

	"pdftalk/internal/extractor"
	"pdftalk/internal/index"
	"pdftalk/internal/models"
	"pdftalk/internal/splitter"
)

// Pipeline runs uploads through extract, split and batched indexing.
type Pipeline struct {
	splitter  *splitter.Splitter
	indexer   *index.Indexer
	store     index.Store
	dimension int
	metric    string
	batchSize int
}

func New(split *splitter.Splitter, indexer *index.Indexer, store index.Store, dimension int, metric string, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	return &Pipeline{
		splitter:  split,
		indexer:   indexer,
		store:     store,
		dimension: dimension,
		metric:    metric,
		batchSize: batchSize,
	}
}

// Ingest processes each file independently, best effort: a file that fails
// to extract or yields no text is recorded and skipped without aborting the
// batch. When at least one chunk was produced, the index is provisioned and
// all accumulated chunks are upserted in one batched call. With zero chunks
// the index backend is never contacted.
//
// There is no partial-commit semantics: an upsert failure can leave the
// index with some but not all chunks of this call.
func (p *Pipeline) Ingest(ctx context.Context, files []models.File) ([]models.FileResult, error) {
	log.Info().Int("files", len(files)).Msg("Starting ingestion")

	results := make([]models.FileResult, 0, len(files))
	var accumulated []models.Chunk

	for _, file := range files {
		pages, err := extractor.Extract(file.Name, file.Data)
		if err != nil {
			log.Error().Str("file", file.Name).Err(err).Msg("Extraction failed, skipping file")
			results = append(results, models.FileResult{
				Name:    file.Name,
				Outcome: models.OutcomeFailed,
				Reason:  err.Error(),
			})
			continue
		}
		if len(pages) == 0 {
			log.Warn().Str("file", file.Name).Msg("No text extracted, skipping file")
			results = append(results, models.FileResult{
				Name:    file.Name,
				Outcome: models.OutcomeSkipped,
				Reason:  "no text extracted",
			})
			continue
		}

		chunks := p.splitter.Split(pages, file.Name)
		if len(chunks) == 0 {
			results = append(results, models.FileResult{
				Name:    file.Name,
				Outcome: models.OutcomeSkipped,
				Reason:  "no chunks produced",
			})
			continue
		}

		log.Info().Str("file", file.Name).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("File processed")
		accumulated = append(accumulated, chunks...)
		results = append(results, models.FileResult{
			Name:    file.Name,
			Outcome: models.OutcomeSuccess,
			Chunks:  len(chunks),
		})
	}

	if len(accumulated) == 0 {
		log.Info().Msg("No chunks to index")
		return results, nil
	}

	if err := p.store.Ensure(ctx, p.dimension, p.metric); err != nil {
		return results, err
	}
	if err := p.indexer.Upsert(ctx, accumulated, p.batchSize); err != nil {
		return results, err
	}

	log.Info().Int("chunks", len(accumulated)).Msg("Ingestion finished")
	return results, nil
}
