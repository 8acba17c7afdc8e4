package service

import (
	"context"

	"github.com/rs/zerolog"

	"docq/internal/domain"
)

// Recorder receives answered questions. *history.Session satisfies it.
type Recorder interface {
	Append(question, answer string, citations []string) error
}

// QA glues retrieval and composition into the one call the UIs need.
type QA struct {
	retriever *Retriever
	composer  *Composer
	store     domain.IndexStore
	recorder  Recorder
	log       zerolog.Logger
	topK      int
}

func NewQA(retriever *Retriever, composer *Composer, store domain.IndexStore, recorder Recorder, topK int, log zerolog.Logger) *QA {
	if topK <= 0 {
		topK = 5
	}
	return &QA{
		retriever: retriever,
		composer:  composer,
		store:     store,
		recorder:  recorder,
		log:       log,
		topK:      topK,
	}
}

// Ask retrieves context for the question and composes a grounded
// answer. Only retrieval failures (question embedding, store outage)
// surface as errors; everything downstream degrades to fixed answers.
// Answered questions are recorded to the session history, best effort.
func (q *QA) Ask(ctx context.Context, question, sourceFilter string) (domain.Answer, error) {
	results, err := q.retriever.Retrieve(ctx, question, q.topK, sourceFilter)
	if err != nil {
		return domain.Answer{}, err
	}
	answer := q.composer.Compose(ctx, question, results)
	if q.recorder != nil {
		if err := q.recorder.Append(question, answer.Text, answer.Citations); err != nil {
			q.log.Warn().Err(err).Msg("failed to record history")
		}
	}
	return answer, nil
}

// Documents lists the indexed sources with their chunk counts.
func (q *QA) Documents(ctx context.Context) ([]domain.SourceCount, error) {
	return q.store.FacetBySource(ctx)
}

// Count returns the number of indexed chunks.
func (q *QA) Count(ctx context.Context) (int, error) {
	return q.store.Count(ctx)
}
