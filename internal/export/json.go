package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"scantab/internal/tables"
)

// PageResult pairs one page's parsed document with its source image.
type PageResult struct {
	Page      int             `json:"page"`
	ImagePath string          `json:"image_path"`
	Data      tables.Document `json:"data"`
}

// WriteJSONSummary writes the combined per-file results array, indented.
func WriteJSONSummary(results []PageResult, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
