package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantab/internal/llm/openai"
)

func TestFindPageFilesNaturalOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"page_10.json", "page_2.json", "page_1.json", "notes.json", "page_x.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o644))
	}
	sub := filepath.Join(root, "volume2")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "page_3.json"), []byte("{}"), 0o644))

	files, err := FindPageFiles(root)
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"page_1.json", "page_2.json", "page_3.json", "page_10.json"}, names)
}

func TestExtractRecords(t *testing.T) {
	data := []byte(`{
		"shapes": [
			{"label": "firm", "openai_outputs": "Coal Mining Co, est. 1891"},
			{"label": "stamp"},
			{"openai_outputs": "   "},
			{"openai_outputs": "Steel Works, est. 1899"}
		]
	}`)

	records, err := ExtractRecords(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coal Mining Co, est. 1891", "Steel Works, est. 1899"}, records)
}

func TestExtractRecordsNoShapes(t *testing.T) {
	records, err := ExtractRecords([]byte(`{"version": "1.0"}`))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = ExtractRecords([]byte(`not json`))
	require.Error(t, err)
}

func TestFormatterProcessFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "COMPANY INFO\nFormatted record."}},
			},
		})
	}))
	defer srv.Close()

	inDir := t.TempDir()
	outDir := t.TempDir()
	page := `{"shapes": [{"openai_outputs": "raw firm data one"}, {"openai_outputs": "raw firm data two"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "page_1.json"), []byte(page), 0o644))

	client := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKey: "test"}, nil)
	f := NewFormatter(client, nil)

	stats, err := f.ProcessFolder(context.Background(), inDir, outDir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 0, stats.Errors)

	b, err := os.ReadFile(filepath.Join(outDir, "page_1_records.txt"))
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "FIRM RECORD 1")
	assert.Contains(t, out, "FIRM RECORD 2")
	assert.Contains(t, out, "Source: page_1.json, Record 2")
	assert.Contains(t, out, "Formatted record.")
}

func TestFormatterKeepsRawOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	inDir := t.TempDir()
	outDir := t.TempDir()
	page := `{"shapes": [{"openai_outputs": "raw firm data"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "page_1.json"), []byte(page), 0o644))

	client := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKey: "test"}, nil)
	f := NewFormatter(client, nil)

	stats, err := f.ProcessFolder(context.Background(), inDir, outDir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Errors)

	b, err := os.ReadFile(filepath.Join(outDir, "page_1_records.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "[ERROR FORMATTING]\nraw firm data")
}

func TestFormatterEmptyFolder(t *testing.T) {
	f := NewFormatter(openai.NewClient(openai.Config{}, nil), nil)
	_, err := f.ProcessFolder(context.Background(), t.TempDir(), t.TempDir())
	require.Error(t, err)
}
