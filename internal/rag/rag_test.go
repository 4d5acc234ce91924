package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pdftalk/internal/index"
	"pdftalk/internal/models"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, f.err
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeStore struct {
	results []models.SearchResult
	err     error
	gotTopK int
}

func (f *fakeStore) Ensure(ctx context.Context, dimension int, metric string) error { return nil }
func (f *fakeStore) Exists(ctx context.Context) (bool, error)                       { return true, nil }
func (f *fakeStore) Delete(ctx context.Context) error                               { return nil }
func (f *fakeStore) Add(ctx context.Context, records []index.Record) error          { return nil }

func (f *fakeStore) Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	f.gotTopK = topK
	return f.results, f.err
}

type fakeCompleter struct {
	prompt string
	answer string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func chunk(content, source string, page int) models.Chunk {
	return models.Chunk{
		Content:  content,
		Metadata: models.Metadata{Source: source, Page: page, PDFName: source},
	}
}

func TestAnswerReturnsSourcesInRetrievalOrder(t *testing.T) {
	store := &fakeStore{results: []models.SearchResult{
		{Chunk: chunk("The boiler pressure limit is 12 bar.", "manual.pdf", 3), Score: 0.92},
		{Chunk: chunk("Relief valves open automatically.", "manual.pdf", 4), Score: 0.85},
	}}
	completer := &fakeCompleter{answer: "The limit is 12 bar."}
	r := NewRAG(store, &fakeEmbedder{}, completer, 4)

	resp, err := r.Answer(context.Background(), "What is the boiler pressure limit?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Content != "The limit is 12 bar." {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(resp.Sources))
	}
	if resp.Sources[0].Metadata.Page != 3 || resp.Sources[1].Metadata.Page != 4 {
		t.Errorf("sources out of retrieval order: %+v", resp.Sources)
	}
	if strings.Contains(resp.Content, models.FallbackAnswer) {
		t.Errorf("answer unexpectedly contains the fallback sentence")
	}
	if store.gotTopK != 4 {
		t.Errorf("topK = %d, want 4", store.gotTopK)
	}
}

func TestAnswerPromptContainsContextAndQuestion(t *testing.T) {
	store := &fakeStore{results: []models.SearchResult{
		{Chunk: chunk("chunk one text", "a.pdf", 1), Score: 0.9},
		{Chunk: chunk("chunk two text", "a.pdf", 2), Score: 0.8},
	}}
	completer := &fakeCompleter{answer: "ok"}
	r := NewRAG(store, &fakeEmbedder{}, completer, 4)

	if _, err := r.Answer(context.Background(), "the question?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	for _, want := range []string{"chunk one text", "chunk two text", "the question?", models.FallbackAnswer} {
		if !strings.Contains(completer.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// context keeps retrieval order
	if strings.Index(completer.prompt, "chunk one text") > strings.Index(completer.prompt, "chunk two text") {
		t.Error("context chunks out of retrieval order")
	}
}

func TestAnswerFallbackPassesThroughVerbatim(t *testing.T) {
	store := &fakeStore{results: []models.SearchResult{
		{Chunk: chunk("content about topic X", "x.pdf", 1), Score: 0.3},
	}}
	completer := &fakeCompleter{answer: models.FallbackAnswer + "\n"}
	r := NewRAG(store, &fakeEmbedder{}, completer, 4)

	resp, err := r.Answer(context.Background(), "unrelated question about topic Y?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Content != models.FallbackAnswer {
		t.Errorf("content = %q, want the exact fallback sentence", resp.Content)
	}
}

func TestAnswerErrors(t *testing.T) {
	tests := []struct {
		name      string
		embedder  *fakeEmbedder
		store     *fakeStore
		completer *fakeCompleter
	}{
		{"embed failure", &fakeEmbedder{err: errors.New("auth")}, &fakeStore{}, &fakeCompleter{}},
		{"retrieval failure", &fakeEmbedder{}, &fakeStore{err: errors.New("down")}, &fakeCompleter{}},
		{"completion failure", &fakeEmbedder{}, &fakeStore{}, &fakeCompleter{err: errors.New("llm")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRAG(tt.store, tt.embedder, tt.completer, 4)
			_, err := r.Answer(context.Background(), "q?")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, models.ErrAnswer) {
				t.Errorf("error %v does not wrap ErrAnswer", err)
			}
		})
	}
}

func TestNewRAGDefaultTopK(t *testing.T) {
	store := &fakeStore{}
	r := NewRAG(store, &fakeEmbedder{}, &fakeCompleter{answer: "ok"}, 0)
	if _, err := r.Answer(context.Background(), "q?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if store.gotTopK != models.DefaultTopK {
		t.Errorf("topK = %d, want default %d", store.gotTopK, models.DefaultTopK)
	}
}
