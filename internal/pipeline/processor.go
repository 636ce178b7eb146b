// Package pipeline coordinates rasterization, model calls, parsing and export
// for one source file at a time.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scantab/constants"
	"scantab/internal/common"
	"scantab/internal/export"
	"scantab/internal/ollama"
	"scantab/internal/raster"
	"scantab/internal/runs"
	"scantab/internal/tables"
)

// Config holds per-processor settings.
type Config struct {
	VisionModel string
	OutputDir   string
	Format      string // "xlsx" or "csv"
}

// Processor runs the extraction pipeline for individual files. Files are
// processed sequentially; there is no shared mutable state across files.
type Processor struct {
	cfg    Config
	model  *ollama.Client
	raster *raster.Converter
	runs   *runs.Store
	logger *slog.Logger
}

func NewProcessor(cfg Config, model *ollama.Client, conv *raster.Converter, store *runs.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, model: model, raster: conv, runs: store, logger: logger}
}

// FileReport summarizes one processed source file.
type FileReport struct {
	SourcePath  string
	Format      string
	Pages       int
	Parsed      int
	Fallbacks   int
	Failed      int
	SummaryPath string
}

// ProcessFile runs the full pipeline for one image or PDF: rasterize (PDF
// only), send each page to the vision model, parse the response into tables,
// export per-page output, and write the combined JSON summary.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*FileReport, error) {
	start := time.Now()
	ctx = common.WithSource(ctx, path)
	format := constants.MapExtToFormat(filepath.Ext(path))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	p.logger.Info("pipeline.file.start", "path", path, "format", format)

	var pageImages []string
	if format == constants.PDF {
		pages, err := p.raster.Convert(ctx, path, filepath.Join(p.cfg.OutputDir, stem))
		if err != nil {
			p.logger.Error("pipeline.raster.failed", "path", path, "error", err)
			return nil, fmt.Errorf("rasterize %s: %w", path, err)
		}
		for _, pg := range pages {
			pageImages = append(pageImages, pg.ImagePath)
		}
	} else {
		pageImages = []string{path}
	}

	report := &FileReport{SourcePath: path, Format: format, Pages: len(pageImages)}
	results := make([]export.PageResult, 0, len(pageImages))

	for i, imgPath := range pageImages {
		page := i + 1
		doc, err := p.processPage(ctx, path, format, imgPath, stem, page)
		if err != nil {
			// A page failure is recorded but does not abort the file.
			p.logger.Error("pipeline.page.failed", "path", path, "page", page, "error", err)
			report.Failed++
			continue
		}
		if doc.Note == tables.FallbackNote {
			report.Fallbacks++
		} else {
			report.Parsed++
		}
		results = append(results, export.PageResult{Page: page, ImagePath: imgPath, Data: doc})
	}

	summaryPath := filepath.Join(p.cfg.OutputDir, stem+"_results.json")
	if err := export.WriteJSONSummary(results, summaryPath); err != nil {
		return report, fmt.Errorf("write summary: %w", err)
	}
	report.SummaryPath = summaryPath

	p.logger.Info("pipeline.file.done",
		"path", path,
		"pages", report.Pages,
		"parsed", report.Parsed,
		"fallbacks", report.Fallbacks,
		"failed", report.Failed,
		"summary", summaryPath,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (p *Processor) processPage(ctx context.Context, sourcePath, format, imgPath, stem string, page int) (tables.Document, error) {
	runID, err := p.runs.Start(ctx, sourcePath, format, page)
	if err != nil {
		return tables.Document{}, err
	}
	// Correlates model-call logs with the run row.
	ctx = common.WithRequestID(ctx, runID.String())

	text, err := p.model.GenerateWithImageFile(ctx, p.cfg.VisionModel, tables.ExtractionPrompt, imgPath)
	if err != nil {
		_ = p.runs.MarkFailed(ctx, runID, err.Error())
		return tables.Document{}, fmt.Errorf("model call: %w", err)
	}
	p.logger.Info("pipeline.model.response", "page", page, "chars", len(text))

	doc, parseErr := tables.Parse(text, p.logger)
	if parseErr != nil {
		p.logger.Warn("pipeline.parse.fallback", "page", page, "error", parseErr)
		doc = tables.Fallback(text)
	}

	base := fmt.Sprintf("%s_page%d", stem, page)
	var outPath string
	switch p.cfg.Format {
	case "csv":
		paths, err := export.WriteCSV(doc, filepath.Join(p.cfg.OutputDir, base), p.logger)
		if err != nil {
			_ = p.runs.MarkFailed(ctx, runID, err.Error())
			return tables.Document{}, fmt.Errorf("export csv: %w", err)
		}
		if len(paths) > 0 {
			outPath = paths[0]
		}
	default:
		outPath, err = export.WriteXLSX(doc, filepath.Join(p.cfg.OutputDir, base+".xlsx"), p.logger)
		if err != nil {
			_ = p.runs.MarkFailed(ctx, runID, err.Error())
			return tables.Document{}, fmt.Errorf("export xlsx: %w", err)
		}
	}

	if parseErr != nil {
		_ = p.runs.MarkFallback(ctx, runID, outPath)
	} else {
		_ = p.runs.MarkParsed(ctx, runID, len(doc.Tables), doc.RowCount(), outPath)
	}
	return doc, nil
}
