package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scantab/internal/tables"
)

// WriteCSV writes one CSV file per table next to basePath:
// <base>_table1.csv, <base>_table2.csv, ... Returns the written paths.
func WriteCSV(doc tables.Document, basePath string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !doc.HasTables() {
		if doc.RawResponse != "" {
			txtPath := basePath + ".txt"
			if err := WriteRawText(doc.RawResponse, txtPath); err != nil {
				return nil, err
			}
			logger.Info("export.csv.raw_fallback", "path", txtPath)
			return []string{txtPath}, nil
		}
		logger.Info("export.csv.no_tables", "base", basePath)
		return nil, nil
	}

	dir := filepath.Dir(basePath)
	stem := strings.TrimSuffix(filepath.Base(basePath), filepath.Ext(basePath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, t := range doc.Tables {
		if len(t.Rows) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_table%d.csv", stem, t.TableNumber))
		if err := writeOneCSV(t, path); err != nil {
			return written, err
		}
		logger.Info("export.csv.saved", "path", path, "rows", len(t.Rows))
		written = append(written, path)
	}
	return written, nil
}

func writeOneCSV(t tables.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if len(t.Headers) > 0 {
		if err := w.Write(t.Headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
