// Command indexadmin manages the search index: inspect contents,
// delete documents, clear everything, export statistics and check the
// configuration.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"docq/internal/app"
	"docq/internal/config"
	"docq/internal/domain"
	"docq/internal/logging"
)

// clearPhrase must be typed verbatim before the index is wiped.
const clearPhrase = "DELETE ALL"

const usage = `Usage: indexadmin [--config=config.yaml] <command>

Commands:
  info             show indexed documents and chunk counts
  delete <source>  remove every chunk of one document
  clear            remove every chunk in the index (asks for confirmation)
  dupes            scan for chunks whose text appears more than once
  export <file>    write index statistics as JSON
  check            verify configuration and service connectivity`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docq/config.yaml if not provided)")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(1)
	}

	log := logging.NewConsole("info")

	cfg, cfgFrom, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log = logging.NewConsole(cfg.Log.Level)

	ctx := context.Background()
	switch args[0] {
	case "info":
		run(log, cmdInfo(ctx, cfg))
	case "delete":
		if len(args) < 2 {
			log.Fatal().Msg("delete needs a source document name")
		}
		run(log, cmdDelete(ctx, cfg, args[1]))
	case "clear":
		run(log, cmdClear(ctx, cfg))
	case "dupes":
		run(log, cmdDupes(ctx, cfg))
	case "export":
		if len(args) < 2 {
			log.Fatal().Msg("export needs an output file")
		}
		run(log, cmdExport(ctx, cfg, args[1]))
	case "check":
		run(log, cmdCheck(ctx, cfg, cfgFrom))
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func run(log zerolog.Logger, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func cmdInfo(ctx context.Context, cfg *config.AppConfig) error {
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	docs, err := store.FacetBySource(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Index holds %d chunks across %d documents\n\n", total, len(docs))
	for _, d := range docs {
		fmt.Printf("  %-50s %6d chunks\n", d.Source, d.Chunks)
	}
	return nil
}

func cmdDelete(ctx context.Context, cfg *config.AppConfig, source string) error {
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	n, err := store.DeleteBySource(ctx, source)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Printf("No chunks found for %s\n", source)
		return nil
	}
	fmt.Printf("Deleted %d chunks of %s\n", n, source)
	return nil
}

func cmdClear(ctx context.Context, cfg *config.AppConfig) error {
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("The index is already empty.")
		return nil
	}
	fmt.Printf("This removes all %d chunks. Type %q to proceed: ", total, clearPhrase)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != clearPhrase {
		fmt.Println("Aborted.")
		return nil
	}
	n, err := store.DeleteAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d chunks\n", n)
	return nil
}

// cmdDupes scans the whole index for chunk texts indexed under more
// than one id. Content-derived ids prevent exact re-ingestion dupes,
// but the same text can legitimately recur across pages or documents;
// this surfaces those for the operator to judge.
func cmdDupes(ctx context.Context, cfg *config.AppConfig) error {
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	chunks, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	groups := duplicateGroups(chunks)
	if len(groups) == 0 {
		fmt.Printf("No duplicate chunk texts among %d chunks.\n", len(chunks))
		return nil
	}
	fmt.Printf("Found %d duplicated chunk texts:\n\n", len(groups))
	for _, group := range groups {
		fmt.Printf("  %q appears %d times:\n", preview(group[0].Content), len(group))
		for _, c := range group {
			fmt.Printf("    %s (page %d)\n", c.Source, c.Page)
		}
		fmt.Println()
	}
	return nil
}

// duplicateGroups buckets chunks by exact content and keeps buckets
// with more than one member, in first-seen order.
func duplicateGroups(chunks []domain.ChunkRef) [][]domain.ChunkRef {
	byContent := make(map[string][]domain.ChunkRef)
	var order []string
	for _, c := range chunks {
		if _, ok := byContent[c.Content]; !ok {
			order = append(order, c.Content)
		}
		byContent[c.Content] = append(byContent[c.Content], c)
	}
	var groups [][]domain.ChunkRef
	for _, content := range order {
		if group := byContent[content]; len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// preview trims content to one short line for display.
func preview(content string) string {
	const limit = 60
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

// indexStats is the export file shape.
type indexStats struct {
	GeneratedAt time.Time            `json:"generated_at"`
	TotalChunks int                  `json:"total_chunks"`
	Documents   []domain.SourceCount `json:"documents"`
}

func cmdExport(ctx context.Context, cfg *config.AppConfig, path string) error {
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	docs, err := store.FacetBySource(ctx)
	if err != nil {
		return err
	}
	stats := indexStats{GeneratedAt: time.Now().UTC(), TotalChunks: total, Documents: docs}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("Statistics written to %s\n", path)
	return nil
}

// cmdCheck verifies the pieces a working setup needs: env vars present,
// the search index reachable and the embeddings deployment answering.
func cmdCheck(ctx context.Context, cfg *config.AppConfig, cfgFrom string) error {
	fmt.Printf("Config: %s\n\n", cfgFrom)

	envs := []string{cfg.Embedding.EndpointEnv, cfg.Embedding.APIKeyEnv}
	if cfg.Search.Type != "memory" {
		envs = append(envs, cfg.Search.EndpointEnv, cfg.Search.APIKeyEnv, cfg.Search.IndexEnv)
	}
	missing := 0
	for _, name := range envs {
		if os.Getenv(name) == "" {
			fmt.Printf("  [MISSING] %s\n", name)
			missing++
		} else {
			fmt.Printf("  [ok]      %s\n", name)
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d environment variables missing", missing)
	}

	store, err := app.NewIndexStore(cfg)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		fmt.Println("\n  [FAILED]  search service")
		return err
	}
	fmt.Printf("\n  [ok]      search service (%d chunks indexed)\n", total)

	client, err := app.NewAOAIClient(cfg)
	if err != nil {
		return err
	}
	vec, err := client.Embed(ctx, "connectivity check")
	if err != nil {
		fmt.Println("  [FAILED]  embeddings deployment")
		return err
	}
	fmt.Printf("  [ok]      embeddings deployment (%s, %d dimensions)\n", cfg.Embedding.Deployment, len(vec))

	if _, err := client.Complete(ctx, "You are a connectivity check.", "Reply with the word OK.", 5, 0); err != nil {
		fmt.Println("  [FAILED]  chat deployment")
		return err
	}
	fmt.Printf("  [ok]      chat deployment (%s)\n", cfg.Chat.Deployment)
	fmt.Println("\nEverything looks good.")
	return nil
}
