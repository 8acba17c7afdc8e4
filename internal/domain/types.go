package domain

import "time"

// Chunk is the atomic indexed unit: one window of text cut from one page
// of a source document. ID is content-derived and doubles as the index
// key and the dedup key, so re-ingesting identical input overwrites
// instead of duplicating.
type Chunk struct {
	ID         string
	Content    string
	Source     string
	Page       int
	Vector     []float64
	IngestedAt time.Time
}

// RetrievalResult is one ranked passage returned by the index store.
type RetrievalResult struct {
	Content string
	Source  string
	Page    int
	Score   float64
}

// Answer is generated text plus its ordered, de-duplicated citations.
type Answer struct {
	Text      string
	Citations []string
}

// IngestReport summarizes one ingestion run. The caller decides whether
// the failure counts are acceptable.
type IngestReport struct {
	TotalChunks int
	Embedded    int
	Failed      int
	Uploaded    int
	// Skipped is set when the source was already indexed and the caller
	// declined to re-ingest.
	Skipped bool
}

// IngestOptions controls the existence check before ingestion.
type IngestOptions struct {
	// Force skips the already-indexed check entirely.
	Force bool
	// Confirm decides whether to re-ingest a source that is already
	// indexed. A nil Confirm declines.
	Confirm func(source string) bool
}

// SourceCount is a facet entry: one indexed document and its chunk count.
type SourceCount struct {
	Source string
	Chunks int
}

// ChunkRef locates one indexed chunk together with its content. Used
// by administrative scans; the retrieval path never needs it.
type ChunkRef struct {
	ID      string
	Content string
	Source  string
	Page    int
}

// Query is a hybrid search request. Text drives the lexical match,
// Vector the nearest-neighbour match; fusion of the two is up to the
// index store. Source, when non-empty, restricts results to one document.
type Query struct {
	Text   string
	Vector []float64
	Source string
	TopK   int
}
