package tables

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"scantab/internal/common"
)

// FallbackNote marks documents whose structured parse failed.
const FallbackNote = "Failed to parse structured data"

// Parse extracts a Document from a free-text model response. It strips code
// fences, validates strictly against the document schema, and falls back to a
// lenient sanitize pass before giving up. On failure the returned error is
// non-nil; callers usually substitute Fallback(text).
func Parse(text string, logger *slog.Logger) (Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	payload := ExtractJSONBlock(text)
	if strings.TrimSpace(payload) == "" {
		return Document{}, fmt.Errorf("empty response: %w", common.ErrParse)
	}

	schema := BuildDocumentSchema()
	raw := []byte(payload)

	if err := ValidateAgainstSchema(schema, raw); err != nil {
		cleaned, repairs, sErr := SanitizeDocument(raw)
		if sErr != nil {
			logger.Warn("tables.parse.sanitize_failed", "error", sErr)
			return Document{}, fmt.Errorf("sanitize (%v): %w", sErr, common.ErrParse)
		}
		if vErr := ValidateAgainstSchema(schema, cleaned); vErr != nil {
			logger.Warn("tables.parse.schema_validation_failed", "error", vErr)
			return Document{}, fmt.Errorf("schema validation (%v): %w", vErr, common.ErrParse)
		}
		if len(repairs) > 0 {
			logger.Warn("tables.parse.lenient_sanitize_applied", "repairs", repairs)
		}
		raw = cleaned
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document (%v): %w", err, common.ErrParse)
	}
	// table_number is optional in the schema; number by position when absent.
	for i := range doc.Tables {
		if doc.Tables[i].TableNumber < 1 {
			doc.Tables[i].TableNumber = i + 1
		}
	}
	return doc, nil
}

// Fallback wraps an unparseable response so the raw text is not lost.
func Fallback(text string) Document {
	return Document{
		Tables:      []Table{},
		RawResponse: text,
		Note:        FallbackNote,
	}
}

// ExtractJSONBlock isolates the JSON payload from a model response. Markdown
// code fences win; otherwise the outermost brace pair is taken; otherwise the
// trimmed text is returned as-is.
func ExtractJSONBlock(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+len("```"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			return strings.TrimSpace(text[i : j+1])
		}
	}
	return strings.TrimSpace(text)
}
