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

func TestComposeNoContextSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{text: "should never appear"}
	c := NewComposer(gen, 800, 0.3, zerolog.Nop())

	answer := c.Compose(context.Background(), "anything?", nil)

	assert.Equal(t, NoContextAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, gen.calls, "no generation without context")
}

func TestComposeBuildsGroundedPrompt(t *testing.T) {
	gen := &stubGenerator{text: "The reset button is on the back panel."}
	c := NewComposer(gen, 800, 0.3, zerolog.Nop())

	results := []domain.RetrievalResult{
		{Content: "Press the reset button.", Source: "manual.pdf", Page: 12, Score: 2.1},
		{Content: "The back panel houses the controls.", Source: "manual.pdf", Page: 3, Score: 1.4},
	}
	answer := c.Compose(context.Background(), "where is the reset button?", results)

	assert.Equal(t, "The reset button is on the back panel.", answer.Text)
	assert.Equal(t, []string{"manual.pdf (pág. 12)", "manual.pdf (pág. 3)"}, answer.Citations)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 800, gen.lastTokens)
	assert.InDelta(t, 0.3, gen.lastTemp, 1e-9)
	assert.Contains(t, gen.lastSystem, "ONLY on the provided context")
	assert.Contains(t, gen.lastUser, "[Source: manual.pdf, page 12]\nPress the reset button.")
	assert.Contains(t, gen.lastUser, "[Source: manual.pdf, page 3]\nThe back panel houses the controls.")
	assert.Contains(t, gen.lastUser, "Question: where is the reset button?")
}

func TestComposeDedupesCitations(t *testing.T) {
	c := NewComposer(&stubGenerator{text: "ok"}, 800, 0.3, zerolog.Nop())

	results := []domain.RetrievalResult{
		{Content: "first passage", Source: "a.pdf", Page: 2},
		{Content: "second passage", Source: "b.pdf", Page: 1},
		{Content: "third passage", Source: "a.pdf", Page: 2},
	}
	answer := c.Compose(context.Background(), "q", results)

	assert.Equal(t, []string{"a.pdf (pág. 2)", "b.pdf (pág. 1)"}, answer.Citations)
}

func TestComposeGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("deployment not found")}
	c := NewComposer(gen, 800, 0.3, zerolog.Nop())

	results := []domain.RetrievalResult{{Content: "passage", Source: "a.pdf", Page: 1}}
	answer := c.Compose(context.Background(), "q", results)

	assert.Equal(t, FailedAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, 1, gen.calls)
}

func TestComposeDefaultsMaxTokens(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	c := NewComposer(gen, 0, 0.3, zerolog.Nop())

	results := []domain.RetrievalResult{{Content: "passage", Source: "a.pdf", Page: 1}}
	_ = c.Compose(context.Background(), "q", results)

	require.Equal(t, 1, gen.calls)
	assert.Equal(t, 800, gen.lastTokens)
}
