package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"scantab/internal/common"
	"scantab/internal/ollama"
	"scantab/internal/rag"
)

const previewLen = 150

func main() {
	topN := flag.Int("n", 0, "number of sources to retrieve (default: RAG_TOP_N)")
	flag.Parse()

	_ = godotenv.Load()

	// Chat output goes to stdout; keep structured logs out of the way.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateRAG(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	n := cfg.RAG.TopN
	if *topN > 0 {
		n = *topN
	}

	ctx := context.Background()

	model := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout, logger)
	if err := model.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not reach the model daemon: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure:")
		fmt.Fprintln(os.Stderr, "  1. The model daemon is running: ollama serve")
		fmt.Fprintf(os.Stderr, "  2. Models are pulled: ollama pull %s && ollama pull %s\n",
			cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel)
		os.Exit(1)
	}

	store, err := rag.NewVectorStore(cfg.RAG.QdrantHost, cfg.RAG.QdrantPort, cfg.RAG.Collection, cfg.RAG.VectorSize, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not connect to the vector store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	svc := rag.NewService(rag.ServiceConfig{
		EmbedModel:     cfg.Ollama.EmbedModel,
		ChatModel:      cfg.Ollama.ChatModel,
		EmbedBatchSize: cfg.RAG.EmbedBatchSize,
	}, model, store, rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap), logger)

	fmt.Println("Corpus RAG chat")
	fmt.Println(strings.Repeat("=", 60))

	count, err := svc.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: could not read collection stats: %v\n", err)
	} else {
		fmt.Printf("Chunks in collection %q: %d\n", cfg.RAG.Collection, count)
		if count == 0 {
			fmt.Println("WARNING: the collection is empty; ingest documents with ragindex first.")
		}
	}

	fmt.Println("\nCommands:")
	fmt.Println("  type a question and press Enter")
	fmt.Println("  'quit' or 'exit' to leave")
	fmt.Println("  'sources on' / 'sources off' to toggle source display")
	fmt.Println("  'n <number>' to change how many sources are retrieved")
	fmt.Println("  'match <name>' to find entries with similar names")
	fmt.Println("  'stats' to show collection statistics")

	showSources := true
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Printf("\n%s\n\nYour question: ", strings.Repeat("-", 60))
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		switch strings.ToLower(question) {
		case "quit", "exit", "q":
			fmt.Println("\nGoodbye!")
			return
		case "sources on":
			showSources = true
			fmt.Println("Source display enabled")
			continue
		case "sources off":
			showSources = false
			fmt.Println("Source display disabled")
			continue
		case "stats":
			count, err := svc.Stats(ctx)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				continue
			}
			fmt.Printf("Collection: %s\nTotal chunks: %d\n", cfg.RAG.Collection, count)
			continue
		}
		if rest, ok := strings.CutPrefix(question, "match "); ok {
			name := strings.TrimSpace(rest)
			if name == "" {
				fmt.Println("Invalid format. Use: match <name>")
				continue
			}
			matches, err := svc.MatchNames(ctx, name, 0)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				continue
			}
			if len(matches) == 0 {
				fmt.Println("No similar entries found.")
				continue
			}
			fmt.Printf("\nEntries similar to %q:\n", name)
			printSources(matches)
			continue
		}
		if rest, ok := strings.CutPrefix(strings.ToLower(question), "n "); ok {
			v, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || v < 1 {
				fmt.Println("Invalid format. Use: n <number>")
				continue
			}
			n = v
			fmt.Printf("Number of sources set to %d\n", n)
			continue
		}

		fmt.Println("\nThinking...")
		answer, matches, err := svc.Answer(ctx, question, n)
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			continue
		}
		if len(matches) == 0 {
			fmt.Println("\nWARNING: no relevant documents found; the answer below is NOT based on your corpus.")
		} else {
			fmt.Printf("Retrieved %d source(s)\n", len(matches))
		}

		fmt.Println("\nAnswer:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Println(answer)
		fmt.Println(strings.Repeat("-", 60))

		if showSources && len(matches) > 0 {
			printSources(matches)
		}
	}
}

func printSources(matches []rag.Match) {
	fmt.Println("\nSources used:")
	for i, m := range matches {
		filename := m.Metadata["filename"]
		if filename == "" {
			filename = "unknown"
		}
		chunkInfo := ""
		if idx, ok := m.Metadata["chunk_index"]; ok {
			chunkInfo = fmt.Sprintf(" (chunk %s/%s)", idx, m.Metadata["total_chunks"])
		}
		fmt.Printf("  [%d] %s%s (score: %.3f)\n", i+1, filename, chunkInfo, m.Score)

		fmt.Printf("      %s\n", truncatePreview(m.Text, previewLen))
	}
}

// truncatePreview collapses newlines and cuts on rune boundaries so multi-byte
// characters in archival names survive the cut.
func truncatePreview(text string, limit int) string {
	preview := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(preview)
	if len(runes) <= limit {
		return preview
	}
	return string(runes[:limit]) + "..."
}
