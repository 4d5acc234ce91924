package splitter

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"pdftalk/internal/models"
)

// Splitter cuts page text into overlapping chunks, preferring paragraph,
// line and sentence boundaries over mid-word cuts.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// New returns a splitter with the given target chunk size and overlap.
// Non-positive values fall back to the defaults.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = models.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = models.DefaultChunkOverlap
	}
	inner := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}),
	)
	return &Splitter{inner: inner}
}

// Split turns pages into chunks carrying {source, page, pdf_name} metadata.
// Chunks preserve page order and, within a page, document order. A page
// whose split fails is logged and skipped; whitespace-only pages are skipped
// silently.
func (s *Splitter) Split(pages []models.Page, source string) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		parts, err := s.inner.SplitText(page.Text)
		if err != nil {
			err = fmt.Errorf("%w: %v", models.ErrSplit, err)
			log.Warn().Str("source", source).Int("page", page.Number).Err(err).Msg("Skipping page, split failed")
			continue
		}
		for _, part := range parts {
			chunks = append(chunks, models.Chunk{
				Content: part,
				Metadata: models.Metadata{
					Source:  source,
					Page:    page.Number,
					PDFName: source,
				},
			})
		}
	}
	log.Debug().Str("source", source).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Split finished")
	return chunks
}
