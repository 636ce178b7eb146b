package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"scantab/internal/common"
	"scantab/internal/ingest"
	"scantab/internal/ollama"
	"scantab/internal/pipeline"
	"scantab/internal/raster"
	"scantab/internal/runs"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir    = flag.String("dir", "", "directory with images/PDFs to process (default: DATA_DIR)")
		out    = flag.String("out", "", "output directory (default: OUTPUT_DIR)")
		format = flag.String("format", "", "export format: xlsx or csv (default: EXPORT_FORMAT)")
		exts   = flag.String("exts", "", "comma-separated extensions to include (default: pdf,jpg,jpeg,png)")
		inmem  = flag.Bool("inmem", false, "use an in-memory run index instead of RUNS_DB_PATH")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *dir != "" {
		cfg.Extract.DataDir = *dir
	}
	if *out != "" {
		cfg.Extract.OutputDir = *out
	}
	if *format != "" {
		cfg.Export.Format = *format
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var includeExts []string
	if *exts != "" {
		includeExts = strings.Split(*exts, ",")
	}

	ctx := context.Background()

	model := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout, logger)
	if err := model.Health(ctx); err != nil {
		printError("Error: could not reach the model daemon: %v\n", err)
		printError("Make sure it is running, e.g.: ollama serve\n")
		os.Exit(1)
	}

	dbPath := cfg.Runs.DBPath
	if *inmem {
		dbPath = ":memory:"
	}
	store, err := runs.Open(dbPath, logger)
	if err != nil {
		logger.Error("failed to open run index", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	files, stats, err := ingest.EnumerateDirectory(ctx, cfg.Extract.DataDir, includeExts, true)
	if err != nil {
		logger.Error("failed to enumerate data directory", "dir", cfg.Extract.DataDir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		printError("No matching files found in %s\n", cfg.Extract.DataDir)
		os.Exit(1)
	}
	logger.Info("batch.start",
		"dir", cfg.Extract.DataDir,
		"files", len(files),
		"scanned", stats.Scanned,
		"format", cfg.Export.Format,
	)

	proc := pipeline.NewProcessor(pipeline.Config{
		VisionModel: cfg.Ollama.VisionModel,
		OutputDir:   cfg.Extract.OutputDir,
		Format:      cfg.Export.Format,
	}, model, raster.NewConverter(cfg.Extract.JPEGQuality, logger), store, logger)

	failedFiles := 0
	for _, path := range files {
		if _, err := proc.ProcessFile(ctx, path); err != nil {
			logger.Error("batch.file_failed", "path", path, "error", err)
			failedFiles++
		}
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		logger.Warn("batch.summary_failed", "error", err)
	}
	logger.Info("batch.done",
		"files", len(files),
		"failed_files", failedFiles,
		"runs", summary,
		"output_dir", cfg.Extract.OutputDir,
	)
	if failedFiles == len(files) {
		os.Exit(1)
	}
}
