package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"scantab/internal/common"
	"scantab/internal/ollama"
	"scantab/internal/rag"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir = flag.String("dir", "", "folder of corpus documents to ingest (required)")
		ext = flag.String("ext", ".txt", "document file extension")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateRAG(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	model := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout, logger)
	if err := model.Health(ctx); err != nil {
		printError("Error: could not reach the model daemon: %v\n", err)
		os.Exit(1)
	}

	store, err := rag.NewVectorStore(cfg.RAG.QdrantHost, cfg.RAG.QdrantPort, cfg.RAG.Collection, cfg.RAG.VectorSize, logger)
	if err != nil {
		logger.Error("failed to connect to vector store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureCollection(ctx); err != nil {
		logger.Error("failed to ensure collection", "error", err)
		os.Exit(1)
	}

	svc := rag.NewService(rag.ServiceConfig{
		EmbedModel:     cfg.Ollama.EmbedModel,
		ChatModel:      cfg.Ollama.ChatModel,
		EmbedBatchSize: cfg.RAG.EmbedBatchSize,
	}, model, store, rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap), logger)

	stats, err := svc.IngestFolder(ctx, *dir, *ext)
	if err != nil {
		logger.Error("ingest failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	count, err := svc.Stats(ctx)
	if err != nil {
		logger.Warn("failed to count collection", "error", err)
	}
	logger.Info("ragindex.done",
		"dir", *dir,
		"files", stats.Files,
		"chunks", stats.Chunks,
		"collection", cfg.RAG.Collection,
		"total_points", count,
	)
}
