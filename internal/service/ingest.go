package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"docq/internal/domain"
)

// batchSize bounds one upsert request to the index store.
const batchSize = 100

// progressEvery controls how often the embedding phase logs progress.
const progressEvery = 10

// Ingestor turns extracted page texts into embedded, indexed chunks.
// Per-chunk embedding failures and per-batch upload failures are
// counted and skipped, never fatal: partial success is an expected
// outcome and the report says what happened.
type Ingestor struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.IndexStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewIngestor(chunker domain.Chunker, embedder domain.Embedder, store domain.IndexStore, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		log:      log,
		now:      time.Now,
	}
}

// Ingest runs chunk → embed → batched upsert for one source document.
//
// Unless opts.Force is set, a source that is already indexed goes
// through opts.Confirm; declining skips the run (Skipped in the report).
// Chunk IDs are content-derived, so re-running with the same geometry
// overwrites rather than duplicates.
func (i *Ingestor) Ingest(ctx context.Context, source string, pages []string, opts domain.IngestOptions) (domain.IngestReport, error) {
	var report domain.IngestReport

	if !opts.Force {
		// Pre-condition gate only: an error here means we cannot tell,
		// and ingestion proceeds as if the source were new.
		has, err := i.store.HasSource(ctx, source)
		if err != nil {
			i.log.Warn().Err(err).Str("source", source).Msg("existence check failed, continuing")
		}
		if err == nil && has {
			if opts.Confirm == nil || !opts.Confirm(source) {
				i.log.Info().Str("source", source).Msg("already indexed, skipping")
				report.Skipped = true
				return report, nil
			}
		}
	}

	chunks, err := i.chunker.Chunk(source, pages)
	if err != nil {
		return report, err
	}
	report.TotalChunks = len(chunks)
	i.log.Info().Str("source", source).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("document chunked")
	if len(chunks) == 0 {
		return report, nil
	}

	stamp := i.now()
	embedded := make([]domain.Chunk, 0, len(chunks))
	for n, ch := range chunks {
		if n%progressEvery == 0 {
			i.log.Debug().Str("source", source).Int("chunk", n+1).Int("of", len(chunks)).Msg("embedding")
		}
		vec, err := i.embedder.Embed(ctx, ch.Content)
		if err != nil {
			// Recorded and dropped; no retry, the run goes on.
			report.Failed++
			i.log.Warn().Err(err).Str("chunk_id", ch.ID).Msg("embedding failed, chunk dropped")
			continue
		}
		ch.Vector = vec
		ch.IngestedAt = stamp
		embedded = append(embedded, ch)
	}
	report.Embedded = len(embedded)

	for start := 0; start < len(embedded); start += batchSize {
		end := start + batchSize
		if end > len(embedded) {
			end = len(embedded)
		}
		batch := embedded[start:end]
		if err := i.store.UpsertBatch(ctx, batch); err != nil {
			// A failed batch does not block its siblings.
			i.log.Error().Err(err).Int("batch", start/batchSize+1).Int("size", len(batch)).Msg("batch upload failed")
			continue
		}
		report.Uploaded += len(batch)
		i.log.Info().Int("batch", start/batchSize+1).Int("size", len(batch)).Msg("batch uploaded")
	}

	i.log.Info().
		Str("source", source).
		Int("total", report.TotalChunks).
		Int("embedded", report.Embedded).
		Int("failed", report.Failed).
		Int("uploaded", report.Uploaded).
		Msg("ingestion finished")
	return report, nil
}
