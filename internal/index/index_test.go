package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pdftalk/internal/models"
)

// fakeEmbedder returns one constant-length vector per input and records the
// size of every batch it was asked to embed.
type fakeEmbedder struct {
	batches []int
	failOn  int // 1-based call number to fail on, 0 for never
	calls   int
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return nil, errors.New("embedding backend unavailable")
	}
	f.batches = append(f.batches, len(texts))
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

// fakeStore records every Add call.
type fakeStore struct {
	added  [][]Record
	failOn int // 1-based Add call number to fail on, 0 for never
}

func (f *fakeStore) Ensure(ctx context.Context, dimension int, metric string) error { return nil }
func (f *fakeStore) Exists(ctx context.Context) (bool, error)                       { return true, nil }
func (f *fakeStore) Delete(ctx context.Context) error                               { return nil }

func (f *fakeStore) Add(ctx context.Context, records []Record) error {
	if f.failOn != 0 && len(f.added)+1 == f.failOn {
		return errors.New("insert rejected")
	}
	f.added = append(f.added, records)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	return nil, nil
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			Content:  fmt.Sprintf("chunk %d", i),
			Metadata: models.Metadata{Source: "doc.pdf", Page: 1, PDFName: "doc.pdf"},
		}
	}
	return chunks
}

func TestUpsertBatching(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(store, embedder)

	if err := ix.Upsert(context.Background(), makeChunks(65), 32); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	want := []int{32, 32, 1}
	if len(embedder.batches) != len(want) {
		t.Fatalf("embedding batches = %v, want %v", embedder.batches, want)
	}
	for i, size := range want {
		if embedder.batches[i] != size {
			t.Errorf("embedding batch %d size = %d, want %d", i, embedder.batches[i], size)
		}
		if len(store.added[i]) != size {
			t.Errorf("store batch %d size = %d, want %d", i, len(store.added[i]), size)
		}
	}
}

func TestUpsertRecordsCarryChunkData(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(store, embedder)

	chunks := []models.Chunk{{
		Content:  "the content",
		Metadata: models.Metadata{Source: "a.pdf", Page: 7, PDFName: "a.pdf"},
	}}
	if err := ix.Upsert(context.Background(), chunks, 32); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec := store.added[0][0]
	if rec.ID == "" {
		t.Error("record has no ID")
	}
	if rec.Text != "the content" {
		t.Errorf("record text = %q", rec.Text)
	}
	if rec.Metadata != chunks[0].Metadata {
		t.Errorf("record metadata = %+v, want %+v", rec.Metadata, chunks[0].Metadata)
	}
	if len(rec.Values) != 3 {
		t.Errorf("record vector length = %d, want 3", len(rec.Values))
	}
}

func TestUpsertAbortsOnBatchFailure(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{failOn: 2}
	ix := NewIndexer(store, embedder)

	err := ix.Upsert(context.Background(), makeChunks(65), 32)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, models.ErrUpsert) {
		t.Errorf("error %v does not wrap ErrUpsert", err)
	}
	// first batch stays inserted, third batch never embedded
	if len(store.added) != 1 {
		t.Errorf("inserted batches = %d, want 1", len(store.added))
	}
	if embedder.calls != 2 {
		t.Errorf("embedding calls = %d, want 2", embedder.calls)
	}
}

func TestUpsertEmbeddingFailureWrapsUpsertError(t *testing.T) {
	embedder := &fakeEmbedder{failOn: 1}
	store := &fakeStore{}
	ix := NewIndexer(store, embedder)

	err := ix.Upsert(context.Background(), makeChunks(5), 32)
	if !errors.Is(err, models.ErrUpsert) {
		t.Fatalf("error %v does not wrap ErrUpsert", err)
	}
	if len(store.added) != 0 {
		t.Errorf("inserted batches = %d, want 0", len(store.added))
	}
}

func TestUpsertDefaultBatchSize(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(store, embedder)

	if err := ix.Upsert(context.Background(), makeChunks(33), 0); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	want := []int{models.DefaultBatchSize, 1}
	if len(embedder.batches) != 2 || embedder.batches[0] != want[0] || embedder.batches[1] != want[1] {
		t.Errorf("embedding batches = %v, want %v", embedder.batches, want)
	}
}
