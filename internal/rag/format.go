package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"scantab/internal/ingest"
	"scantab/internal/llm/openai"
)

var pageFilePattern = regexp.MustCompile(`^page_\d+\.json$`)

// FindPageFiles recursively collects page_N.json files under root, in natural
// order (page_2 before page_10).
func FindPageFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if pageFilePattern.MatchString(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return ingest.NaturalLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

// ExtractRecords pulls the raw record payloads out of one page JSON document.
// Pages carry a "shapes" list whose elements may hold an "openai_outputs"
// string; empty payloads are skipped.
func ExtractRecords(data []byte) ([]string, error) {
	var page struct {
		Shapes []map[string]any `json:"shapes"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode page json: %w", err)
	}

	var records []string
	for _, shape := range page.Shapes {
		out, ok := shape["openai_outputs"].(string)
		if !ok || strings.TrimSpace(out) == "" {
			continue
		}
		records = append(records, out)
	}
	return records, nil
}

// Formatter converts raw page records into retrieval-friendly text files.
type Formatter struct {
	client *openai.Client
	logger *slog.Logger
}

func NewFormatter(client *openai.Client, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{client: client, logger: logger}
}

// FormatStats aggregates a formatting run.
type FormatStats struct {
	Pages   int
	Records int
	Errors  int
}

// ProcessFolder finds page files under inDir and writes one
// <stem>_records.txt per page under outDir. Each record goes through the
// formatter endpoint; on failure the raw payload is kept under an error
// banner so no data is lost. Output is flushed record by record.
func (f *Formatter) ProcessFolder(ctx context.Context, inDir, outDir string) (FormatStats, error) {
	files, err := FindPageFiles(inDir)
	if err != nil {
		return FormatStats{}, err
	}
	if len(files) == 0 {
		return FormatStats{}, fmt.Errorf("no page_N.json files under %s", inDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return FormatStats{}, fmt.Errorf("create output dir: %w", err)
	}

	var stats FormatStats
	total := 0
	for _, path := range files {
		start := time.Now()
		data, err := os.ReadFile(path)
		if err != nil {
			f.logger.Error("rag.format.read_error", "path", path, "error", err)
			stats.Errors++
			continue
		}
		records, err := ExtractRecords(data)
		if err != nil {
			f.logger.Error("rag.format.extract_error", "path", path, "error", err)
			stats.Errors++
			continue
		}
		if len(records) == 0 {
			f.logger.Info("rag.format.no_records", "path", path)
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outPath := filepath.Join(outDir, stem+"_records.txt")
		out, err := os.Create(outPath)
		if err != nil {
			return stats, fmt.Errorf("create %s: %w", outPath, err)
		}

		for i, record := range records {
			formatted, err := f.client.FormatRecord(ctx, record)
			if err != nil {
				f.logger.Warn("rag.format.record_error", "path", path, "record", i+1, "error", err)
				formatted = "[ERROR FORMATTING]\n" + record
				stats.Errors++
			}
			total++
			writeRecordBanner(out, total, filepath.Base(path), i+1)
			_, _ = fmt.Fprintf(out, "%s\n\n", formatted)
			_ = out.Sync()
			stats.Records++
		}
		if err := out.Close(); err != nil {
			return stats, fmt.Errorf("close %s: %w", outPath, err)
		}

		stats.Pages++
		f.logger.Info("rag.format.page_done",
			"path", path,
			"records", len(records),
			"out", outPath,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return stats, nil
}

func writeRecordBanner(out *os.File, recordNum int, sourceFile string, recordIdx int) {
	banner := strings.Repeat("=", 80)
	_, _ = fmt.Fprintf(out, "%s\nFIRM RECORD %d\nSource: %s, Record %d\n%s\n\n",
		banner, recordNum, sourceFile, recordIdx, banner)
}
