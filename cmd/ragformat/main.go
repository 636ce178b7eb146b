package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"scantab/internal/common"
	"scantab/internal/llm/openai"
	"scantab/internal/rag"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in    = flag.String("in", "", "folder containing page_N.json files (required)")
		out   = flag.String("out", "./rag_output", "where to write formatted text files")
		model = flag.String("model", "", "chat model to use (default: OPENAI_MODEL)")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		os.Exit(1)
	}
	if _, err := os.Stat(*in); err != nil {
		printError("Error: input folder does not exist: %s\n", *in)
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *model != "" {
		cfg.OpenAI.Model = *model
	}
	if cfg.OpenAI.APIKey == "" {
		printError("Error: OPENAI_API_KEY is not set\n")
		os.Exit(1)
	}

	client := openai.NewClient(openai.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.OpenAI.Timeout,
	}, logger)

	formatter := rag.NewFormatter(client, logger)
	stats, err := formatter.ProcessFolder(context.Background(), *in, *out)
	if err != nil {
		logger.Error("formatting failed", "in", *in, "error", err)
		os.Exit(1)
	}

	logger.Info("ragformat.done",
		"in", *in,
		"out", *out,
		"pages", stats.Pages,
		"records", stats.Records,
		"errors", stats.Errors,
	)
}
