package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"pdftalk/internal/index"
	"pdftalk/internal/models"
)

const compress = false

// Store is an embedded chromem-go backend. One collection per index name.
// chromem always scores by cosine similarity and does not pin a dimension,
// so Ensure only has to create the collection.
type Store struct {
	db   *chromem.DB
	name string
}

// New opens a persistent database under path, or an in-memory one when path
// is empty.
func New(path, name string) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}
	return &Store{db: db, name: name}, nil
}

func (s *Store) Ensure(ctx context.Context, dimension int, metric string) error {
	_, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexProvisioning, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.db.GetCollection(s.name, nil) != nil, nil
}

func (s *Store) Delete(ctx context.Context) error {
	if s.db.GetCollection(s.name, nil) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, records []index.Record) error {
	collection := s.db.GetCollection(s.name, nil)
	if collection == nil {
		return fmt.Errorf("collection %q does not exist", s.name)
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Values,
			Metadata: map[string]string{
				"source":   rec.Metadata.Source,
				"page":     strconv.Itoa(rec.Metadata.Page),
				"pdf_name": rec.Metadata.PDFName,
			},
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	collection := s.db.GetCollection(s.name, nil)
	if collection == nil {
		return nil, fmt.Errorf("collection %q does not exist", s.name)
	}
	// chromem rejects nResults larger than the collection
	n := min(topK, collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	out := make([]models.SearchResult, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		out = append(out, models.SearchResult{
			Chunk: models.Chunk{
				Content: res.Content,
				Metadata: models.Metadata{
					Source:  res.Metadata["source"],
					Page:    page,
					PDFName: res.Metadata["pdf_name"],
				},
			},
			Score: res.Similarity,
		})
	}
	return out, nil
}
