// Package export writes parsed tables to spreadsheets and JSON summaries.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"scantab/internal/tables"
)

// WriteXLSX writes one sheet per table ("Table_N") to outPath. When the
// document has no tables but carries a raw response, the raw text is written
// to a sibling .txt file instead and its path is returned.
func WriteXLSX(doc tables.Document, outPath string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	if !doc.HasTables() {
		if doc.RawResponse != "" {
			txtPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".txt"
			if err := WriteRawText(doc.RawResponse, txtPath); err != nil {
				return "", err
			}
			logger.Info("export.xlsx.raw_fallback", "path", txtPath)
			return txtPath, nil
		}
		logger.Info("export.xlsx.no_tables", "path", outPath)
		return "", nil
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	first := true
	for _, t := range doc.Tables {
		if len(t.Rows) == 0 {
			continue
		}
		sheet := fmt.Sprintf("Table_%d", t.TableNumber)
		if first {
			// Reuse the default sheet for the first table.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return "", fmt.Errorf("new sheet %s: %w", sheet, err)
			}
		}

		for i, h := range t.Headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
		for r, row := range t.Rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				_ = f.SetCellValue(sheet, cell, v)
			}
		}
		logger.Info("export.xlsx.sheet_written", "sheet", sheet, "rows", len(t.Rows))
	}

	if first {
		// Every table was empty; nothing worth writing.
		logger.Info("export.xlsx.no_rows", "path", outPath)
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := f.SaveAs(outPath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	logger.Info("export.xlsx.saved",
		"path", outPath,
		"tables", len(doc.Tables),
		"rows", doc.RowCount(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outPath, nil
}

// WriteRawText dumps an unparseable model response next to the intended output.
func WriteRawText(text, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write raw response: %w", err)
	}
	return nil
}
