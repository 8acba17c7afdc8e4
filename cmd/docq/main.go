// Command docq answers questions over the indexed documents. By
// default it starts an interactive session; with -questions it runs a
// batch of questions from a file and writes the answers next to it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docq/internal/app"
	"docq/internal/history"
	"docq/internal/logging"
	"docq/internal/service"
	"docq/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, questionsPath, outputPath, filter string
	var topK int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docq/config.yaml if not provided)")
	flag.StringVar(&questionsPath, "questions", "", "File with one question per line; runs in batch mode instead of interactively")
	flag.StringVar(&outputPath, "output", "answers.txt", "Where batch mode writes the answers")
	flag.StringVar(&filter, "filter", "", "Restrict retrieval to one source document")
	flag.IntVar(&topK, "topk", 0, "Number of passages to retrieve per question (default from config)")
	flag.Parse()

	log := logging.NewConsole("info")

	cfg, _, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log = logging.NewConsole(cfg.Log.Level)
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}

	client, err := app.NewAOAIClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("azure openai client init failed")
	}
	store, err := app.NewIndexStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("index store init failed")
	}

	retriever := service.NewRetriever(client, store, log)
	composer := service.NewComposer(client, cfg.Chat.MaxTokens, cfg.Chat.Temperature, log)
	session := history.NewSession(cfg.Log.HistoryDir)
	qa := service.NewQA(retriever, composer, store, session, topK, log)

	ctx := context.Background()
	if questionsPath != "" {
		if err := runBatch(ctx, qa, questionsPath, outputPath, filter); err != nil {
			log.Fatal().Err(err).Msg("batch run failed")
		}
		fmt.Printf("Answers written to %s, history in %s\n", outputPath, session.Path())
		return
	}

	chunks, err := qa.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot reach the index")
	}
	if chunks == 0 {
		log.Fatal().Msg("the index is empty; run ingest first")
	}

	m := tui.New(qa, chunks, filter)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal().Err(err).Msg("tui failed")
	}
}

// runBatch answers every non-empty line of the questions file and
// appends question, answer and sources to the output file.
func runBatch(ctx context.Context, qa *service.QA, questionsPath, outputPath, filter string) error {
	in, err := os.Open(questionsPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" || strings.HasPrefix(question, "#") {
			continue
		}
		n++
		answer, err := qa.Ask(ctx, question, filter)
		if err != nil {
			return fmt.Errorf("question %d: %w", n, err)
		}
		fmt.Fprintf(w, "Q%d: %s\n", n, question)
		fmt.Fprintf(w, "A%d: %s\n", n, answer.Text)
		if len(answer.Citations) > 0 {
			fmt.Fprintf(w, "Sources: %s\n", strings.Join(answer.Citations, ", "))
		}
		fmt.Fprintln(w)
	}
	return scanner.Err()
}
