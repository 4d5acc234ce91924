package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"pdftalk/internal/models"
)

// Extract routes an in-memory upload by file extension. PDF is the primary
// format; DOCX and plain text ride along for convenience.
func Extract(name string, data []byte) ([]models.Page, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ExtractPDF(data)
	case ".docx":
		return ExtractDOCX(data)
	case ".txt", ".md":
		return ExtractText(data), nil
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", models.ErrExtraction, filepath.Ext(name))
	}
}

// ExtractPDF parses raw PDF bytes entirely in memory and returns the ordered
// non-empty pages, 1-indexed. A page whose extraction fails is skipped with a
// warning; an all-empty document yields zero pages and no error.
func ExtractPDF(data []byte) ([]models.Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", models.ErrExtraction)
	}
	reader, err := newReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			log.Warn().Int("page", i).Err(err).Msg("Skipping page, extraction failed")
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, models.Page{Number: i, Text: text})
	}
	return pages, nil
}

// newReader opens the buffer as a PDF. The pdf library panics on some
// malformed inputs, so the recover turns those into parse errors.
func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText isolates the per-page call behind a recover for the same reason.
func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}
	return page.GetPlainText(nil)
}

// ExtractDOCX reads a DOCX held in memory. DOCX has no page numbers, the
// whole document becomes one page.
func ExtractDOCX(data []byte) ([]models.Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	trimmed := strings.TrimSpace(text.String())
	if trimmed == "" {
		return nil, nil
	}
	return []models.Page{{Number: 1, Text: trimmed}}, nil
}

// ExtractText wraps a plain-text buffer as a single page.
func ExtractText(data []byte) []models.Page {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return []models.Page{{Number: 1, Text: text}}
}
