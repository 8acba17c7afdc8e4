// Command ingest loads PDF documents into the search index: extract
// page text, chunk, embed and upsert in batches. Already-indexed
// documents prompt for confirmation unless -force is given.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"docq/internal/app"
	"docq/internal/chunker"
	"docq/internal/domain"
	"docq/internal/extract"
	"docq/internal/history"
	"docq/internal/logging"
	"docq/internal/service"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var force bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docq/config.yaml if not provided)")
	flag.BoolVar(&force, "force", false, "Re-ingest documents that are already indexed without asking")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: ingest [--config=config.yaml] [--force] file.pdf [dir ...]")
		os.Exit(1)
	}

	log := logging.NewConsole("info")

	cfg, cfgFrom, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log = logging.NewConsole(cfg.Log.Level)
	log.Debug().Str("config", cfgFrom).Msg("config loaded")

	client, err := app.NewAOAIClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("azure openai client init failed")
	}
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("index store init failed")
	}
	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid chunker geometry")
	}

	ctx := context.Background()
	if err := store.EnsureIndex(ctx, cfg.Embedding.Dimension); err != nil {
		log.Fatal().Err(err).Msg("failed to provision index")
	}

	paths, err := collectPDFs(inputs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve inputs")
	}
	if len(paths) == 0 {
		log.Fatal().Msg("no PDF files found in the given paths")
	}

	extractor := extract.NewPDFExtractor()
	ingestor := service.NewIngestor(ch, client, store, log)
	activity := history.NewActivityLog(cfg.Log.ActivityFile)

	opts := ingestOptions(force)
	failures := 0
	for _, path := range paths {
		source := filepath.Base(path)
		pages, err := extractor.Extract(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("extraction failed")
			_ = activity.Append("FAILED %s: %v", source, err)
			failures++
			continue
		}
		report, err := ingestor.Ingest(ctx, source, pages, opts)
		if err != nil {
			log.Error().Err(err).Str("source", source).Msg("ingestion failed")
			_ = activity.Append("FAILED %s: %v", source, err)
			failures++
			continue
		}
		if report.Skipped {
			_ = activity.Append("SKIPPED %s (already indexed)", source)
			continue
		}
		_ = activity.Append("INGESTED %s: %d chunks, %d uploaded, %d failed",
			source, report.TotalChunks, report.Uploaded, report.Failed)
	}

	if failures > 0 {
		log.Warn().Int("failed", failures).Int("of", len(paths)).Msg("some documents failed")
		os.Exit(1)
	}
}

// ingestOptions builds the ingest options, wiring a stdin prompt as
// the re-ingestion confirmation unless -force short-circuits it.
func ingestOptions(force bool) (opts domain.IngestOptions) {
	opts.Force = force
	if !force {
		reader := bufio.NewReader(os.Stdin)
		opts.Confirm = func(source string) bool {
			fmt.Printf("%s is already indexed. Re-ingest it? [y/N]: ", source)
			line, err := reader.ReadString('\n')
			if err != nil {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes"
		}
	}
	return opts
}

// collectPDFs expands files and directories into a list of PDF paths.
// Directories are walked recursively; non-PDF files passed explicitly
// are rejected rather than silently skipped.
func collectPDFs(inputs []string) ([]string, error) {
	var paths []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !isPDF(in) {
				return nil, fmt.Errorf("%s is not a PDF file", in)
			}
			paths = append(paths, in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isPDF(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
