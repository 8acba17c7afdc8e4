package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"docq/internal/domain"
)

// Retriever answers "which passages matter for this question" with one
// hybrid query. Ranking and fusion belong to the index store; nothing
// is re-scored here.
type Retriever struct {
	embedder domain.Embedder
	store    domain.IndexStore
	log      zerolog.Logger
}

func NewRetriever(embedder domain.Embedder, store domain.IndexStore, log zerolog.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, log: log}
}

// Retrieve embeds the question and runs a hybrid (lexical + vector)
// search, optionally restricted to one source document. Failing to
// embed the question is fatal to the call: no answer can be grounded
// without it. An empty result set is a normal outcome.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, sourceFilter string) ([]domain.RetrievalResult, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := r.store.Search(ctx, domain.Query{
		Text:   question,
		Vector: vec,
		Source: sourceFilter,
		TopK:   topK,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	r.log.Debug().Int("results", len(results)).Str("filter", sourceFilter).Msg("retrieval done")
	return results, nil
}
