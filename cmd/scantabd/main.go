package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scantab/internal/common"
	"scantab/internal/ingest"
	"scantab/internal/ollama"
	"scantab/internal/pipeline"
	"scantab/internal/raster"
	"scantab/internal/runs"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory to watch (default: DATA_DIR)")
		out      = flag.String("out", "", "output directory (default: OUTPUT_DIR)")
		format   = flag.String("format", "", "export format: xlsx or csv (default: EXPORT_FORMAT)")
		scan     = flag.Bool("scan", true, "process existing files before watching")
		debounce = flag.Duration("debounce", 2*time.Second, "coalesce rapid file events")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout, logger)
	if err := model.Health(ctx); err != nil {
		printError("Error: could not reach the model daemon: %v\n", err)
		os.Exit(1)
	}

	store, err := runs.Open(cfg.Runs.DBPath, logger)
	if err != nil {
		logger.Error("failed to open run index", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	proc := pipeline.NewProcessor(pipeline.Config{
		VisionModel: cfg.Ollama.VisionModel,
		OutputDir:   cfg.Extract.OutputDir,
		Format:      cfg.Export.Format,
	}, model, raster.NewConverter(cfg.Extract.JPEGQuality, logger), store, logger)

	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Root:        cfg.Extract.DataDir,
		InitialScan: *scan,
		Debounce:    *debounce,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "dir", cfg.Extract.DataDir, "error", err)
		os.Exit(1)
	}

	logger.Info("daemon.started", "dir", cfg.Extract.DataDir, "output_dir", cfg.Extract.OutputDir)

	// Files are processed one at a time, in event order.
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon.stopped")
			return
		case err, ok := <-errs:
			if ok {
				logger.Error("daemon.watch_error", "error", err)
			}
		case path, ok := <-paths:
			if !ok {
				logger.Info("daemon.stopped")
				return
			}
			if _, err := proc.ProcessFile(ctx, path); err != nil {
				logger.Error("daemon.file_failed", "path", path, "error", err)
			}
		}
	}
}
