package domain

import "context"

// Extractor pulls per-page text out of a source file. A failed
// extraction aborts ingestion of that file; no partial state is left
// behind.
type Extractor interface {
	Extract(path string) (pages []string, err error)
}

// Embedder maps text to a fixed-length vector. Calls may fail
// individually; callers decide whether that is fatal.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Chunker splits extracted page texts into indexable chunks.
type Chunker interface {
	Chunk(source string, pages []string) ([]Chunk, error)
}

// Generator produces a completion from a system/user prompt pair.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// IndexStore is the document store behind ingestion and retrieval.
// It is keyed by chunk ID, supports hybrid (lexical + vector) search
// and faceting on source. Deleting something that is not there is a
// zero-effect outcome, not an error.
type IndexStore interface {
	EnsureIndex(ctx context.Context, dimension int) error
	UpsertBatch(ctx context.Context, chunks []Chunk) error
	DeleteBySource(ctx context.Context, source string) (deleted int, err error)
	DeleteAll(ctx context.Context) (deleted int, err error)
	Count(ctx context.Context) (int, error)
	FacetBySource(ctx context.Context) ([]SourceCount, error)
	HasSource(ctx context.Context, source string) (bool, error)
	ListAll(ctx context.Context) ([]ChunkRef, error)
	Search(ctx context.Context, q Query) ([]RetrievalResult, error)
}
