package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docq/internal/domain"
)

type recorderSpy struct {
	question  string
	answer    string
	citations []string
	err       error
	calls     int
}

func (r *recorderSpy) Append(question, answer string, citations []string) error {
	r.calls++
	r.question = question
	r.answer = answer
	r.citations = citations
	return r.err
}

func newQA(store *stubStore, gen *stubGenerator, rec Recorder) *QA {
	retriever := NewRetriever(&stubEmbedder{}, store, zerolog.Nop())
	composer := NewComposer(gen, 800, 0.3, zerolog.Nop())
	return NewQA(retriever, composer, store, rec, 5, zerolog.Nop())
}

func TestAskAnswersAndRecords(t *testing.T) {
	store := &stubStore{searchHits: []domain.RetrievalResult{
		{Content: "passage", Source: "a.pdf", Page: 2, Score: 1.0},
	}}
	gen := &stubGenerator{text: "grounded answer"}
	rec := &recorderSpy{}

	answer, err := newQA(store, gen, rec).Ask(context.Background(), "what is it?", "")
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", answer.Text)
	assert.Equal(t, []string{"a.pdf (pág. 2)"}, answer.Citations)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "what is it?", rec.question)
	assert.Equal(t, "grounded answer", rec.answer)
	assert.Equal(t, []string{"a.pdf (pág. 2)"}, rec.citations)
}

func TestAskRetrievalErrorPropagates(t *testing.T) {
	store := &stubStore{searchErr: errors.New("search down")}
	gen := &stubGenerator{text: "unreachable"}
	rec := &recorderSpy{}

	_, err := newQA(store, gen, rec).Ask(context.Background(), "q", "")
	require.Error(t, err)
	assert.Zero(t, gen.calls)
	assert.Zero(t, rec.calls)
}

func TestAskNoContextStillRecorded(t *testing.T) {
	store := &stubStore{}
	gen := &stubGenerator{text: "unreachable"}
	rec := &recorderSpy{}

	answer, err := newQA(store, gen, rec).Ask(context.Background(), "q", "")
	require.NoError(t, err)

	assert.Equal(t, NoContextAnswer, answer.Text)
	assert.Zero(t, gen.calls)
	assert.Equal(t, 1, rec.calls)
}

func TestAskRecorderFailureIsNotFatal(t *testing.T) {
	store := &stubStore{searchHits: []domain.RetrievalResult{
		{Content: "passage", Source: "a.pdf", Page: 1},
	}}
	rec := &recorderSpy{err: errors.New("disk full")}

	answer, err := newQA(store, &stubGenerator{text: "ok"}, rec).Ask(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
}

func TestAskWithoutRecorder(t *testing.T) {
	store := &stubStore{searchHits: []domain.RetrievalResult{
		{Content: "passage", Source: "a.pdf", Page: 1},
	}}

	answer, err := newQA(store, &stubGenerator{text: "ok"}, nil).Ask(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
}

func TestDocumentsAndCount(t *testing.T) {
	store := &stubStore{facets: []domain.SourceCount{
		{Source: "a.pdf", Chunks: 12},
		{Source: "b.pdf", Chunks: 3},
	}}
	qa := newQA(store, &stubGenerator{}, nil)

	docs, err := qa.Documents(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Source)

	n, err := qa.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
