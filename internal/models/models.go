package models

// Page is one page of extracted document text, 1-indexed in document order.
// Pages with empty text never leave the extractor.
type Page struct {
	Number int
	Text   string
}

// Metadata travels with every chunk produced from a page.
// In the in-memory upload flow Source and PDFName are both the file name.
type Metadata struct {
	Source  string
	Page    int
	PDFName string
}

// Chunk is one indexable piece of a page with its metadata
type Chunk struct {
	Content  string
	Metadata Metadata
}

// File is an uploaded document held fully in memory.
type File struct {
	Name string
	Data []byte
}

// Per-file outcomes of an ingestion batch.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// FileResult reports what happened to a single file during ingestion.
type FileResult struct {
	Name    string
	Outcome string
	Chunks  int
	Reason  string
}

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// PromptResponse is the answer to a question plus the chunks it was
// answered from, in retrieval order.
type PromptResponse struct {
	Query   string
	Content string
	Sources []Chunk
}
