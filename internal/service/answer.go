package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"docq/internal/domain"
)

// Fixed answers for the two outcomes where generation has nothing to
// stand on. Neither carries citations.
const (
	NoContextAnswer = "I could not find relevant information to answer your question."
	FailedAnswer    = "Failed to generate an answer."
)

// systemPrompt pins the model to the supplied context. Low temperature
// plus this instruction is what keeps answers grounded.
const systemPrompt = `You are an expert assistant that answers questions based ONLY on the provided context. If the information is not in the context, state clearly that you do not have it. Cite the sources when relevant.`

// Composer builds a grounded prompt from retrieved passages, invokes
// the generator and assembles the citation list. A generator outage is
// absorbed into a fixed error answer, never propagated.
type Composer struct {
	generator   domain.Generator
	log         zerolog.Logger
	maxTokens   int
	temperature float64
}

func NewComposer(generator domain.Generator, maxTokens int, temperature float64, log zerolog.Logger) *Composer {
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &Composer{generator: generator, log: log, maxTokens: maxTokens, temperature: temperature}
}

// Compose answers the question from the given passages. With no
// passages it returns the fixed no-information answer without calling
// the generator at all.
func (c *Composer) Compose(ctx context.Context, question string, results []domain.RetrievalResult) domain.Answer {
	if len(results) == 0 {
		return domain.Answer{Text: NoContextAnswer, Citations: []string{}}
	}

	var b strings.Builder
	for n, r := range results {
		if n > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source: %s, page %d]\n%s", r.Source, r.Page, r.Content)
	}
	userPrompt := fmt.Sprintf("Context from the documents:\n%s\n\nQuestion: %s\n\nPlease give a complete and precise answer based on the context above.", b.String(), question)

	text, err := c.generator.Complete(ctx, systemPrompt, userPrompt, c.maxTokens, c.temperature)
	if err != nil {
		c.log.Error().Err(err).Msg("generation failed")
		return domain.Answer{Text: FailedAnswer, Citations: []string{}}
	}

	return domain.Answer{Text: text, Citations: citations(results)}
}

// citations formats each result as "source (pág. N)" and de-duplicates
// by exact string, preserving first-seen order.
func citations(results []domain.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		c := fmt.Sprintf("%s (pág. %d)", r.Source, r.Page)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
