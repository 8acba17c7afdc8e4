package service

import (
	"context"
	"errors"
	"fmt"

	"docq/internal/domain"
)

// stubChunker emits a fixed number of synthetic chunks.
type stubChunker struct {
	n   int
	err error
}

func (s *stubChunker) Chunk(source string, _ []string) ([]domain.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	chunks := make([]domain.Chunk, s.n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:      fmt.Sprintf("id-%03d", i),
			Content: fmt.Sprintf("chunk %d content", i),
			Source:  source,
			Page:    1,
		}
	}
	return chunks, nil
}

// stubEmbedder returns a constant vector, failing on chosen calls.
type stubEmbedder struct {
	calls   int
	failOn  map[int]bool // 1-based call numbers that fail
	failAll bool
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	s.calls++
	if s.failAll || s.failOn[s.calls] {
		return nil, errors.New("embedding unavailable")
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

// stubStore records calls and can fail chosen upsert batches.
type stubStore struct {
	batches     [][]domain.Chunk
	failBatches map[int]bool // 1-based batch numbers that fail
	hasSource   bool
	hasErr      error
	searchHits  []domain.RetrievalResult
	searchErr   error
	lastQuery   domain.Query
	facets      []domain.SourceCount
}

func (s *stubStore) EnsureIndex(context.Context, int) error { return nil }

func (s *stubStore) UpsertBatch(_ context.Context, chunks []domain.Chunk) error {
	s.batches = append(s.batches, chunks)
	if s.failBatches[len(s.batches)] {
		return errors.New("batch rejected")
	}
	return nil
}

func (s *stubStore) DeleteBySource(context.Context, string) (int, error) { return 0, nil }
func (s *stubStore) DeleteAll(context.Context) (int, error)             { return 0, nil }
func (s *stubStore) Count(context.Context) (int, error)                 { return 0, nil }

func (s *stubStore) FacetBySource(context.Context) ([]domain.SourceCount, error) {
	return s.facets, nil
}

func (s *stubStore) HasSource(context.Context, string) (bool, error) {
	return s.hasSource, s.hasErr
}

func (s *stubStore) ListAll(context.Context) ([]domain.ChunkRef, error) { return nil, nil }

func (s *stubStore) Search(_ context.Context, q domain.Query) ([]domain.RetrievalResult, error) {
	s.lastQuery = q
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchHits, nil
}

// stubGenerator counts calls and returns canned text.
type stubGenerator struct {
	calls      int
	text       string
	err        error
	lastSystem string
	lastUser   string
	lastTokens int
	lastTemp   float64
}

func (s *stubGenerator) Complete(_ context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	s.lastTokens = maxTokens
	s.lastTemp = temperature
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}
