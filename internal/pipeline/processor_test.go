package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantab/constants"
	"scantab/internal/export"
	"scantab/internal/ollama"
	"scantab/internal/raster"
	"scantab/internal/runs"
)

func fakeModelServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req ollama.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Images, "page image must be attached")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProcessor(t *testing.T, srvURL, outDir, format string) (*Processor, *runs.Store) {
	t.Helper()
	store, err := runs.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	model := ollama.NewClient(srvURL, 5*time.Second, nil)
	proc := NewProcessor(Config{
		VisionModel: "glm4v:9b",
		OutputDir:   outDir,
		Format:      format,
	}, model, raster.NewConverter(90, nil), store, nil)
	return proc, store
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	// Content is never decoded locally; it is only base64-attached.
	require.NoError(t, os.WriteFile(path, []byte("jpegdata"), 0o644))
	return path
}

func TestProcessFileImageParsed(t *testing.T) {
	resp := "```json\n" + `{"tables": [{"table_number": 1, "headers": ["A", "B"], "rows": [["1", "2"], ["3", "4"]]}]}` + "\n```"
	srv := fakeModelServer(t, resp)

	outDir := t.TempDir()
	proc, store := newTestProcessor(t, srv.URL, outDir, "csv")
	img := writeImage(t, t.TempDir(), "scan.jpg")

	report, err := proc.ProcessFile(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 0, report.Fallbacks)

	_, err = os.Stat(filepath.Join(outDir, "scan_page1_table1.csv"))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(outDir, "scan_results.json"))
	require.NoError(t, err)
	var results []export.PageResult
	require.NoError(t, json.Unmarshal(b, &results))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Page)
	assert.Equal(t, 2, results[0].Data.RowCount())

	rs, err := store.ListBySource(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, constants.RunStatusParsed, rs[0].Status)
	assert.Equal(t, 2, rs[0].RowCount)
}

func TestProcessFileFallback(t *testing.T) {
	srv := fakeModelServer(t, "I looked carefully but this page defeats me.")

	outDir := t.TempDir()
	proc, store := newTestProcessor(t, srv.URL, outDir, "xlsx")
	img := writeImage(t, t.TempDir(), "blurry.jpg")

	report, err := proc.ProcessFile(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fallbacks)
	assert.Equal(t, 0, report.Parsed)

	b, err := os.ReadFile(filepath.Join(outDir, "blurry_page1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "defeats me")

	rs, err := store.ListBySource(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, constants.RunStatusFallback, rs[0].Status)
}

func TestProcessFileModelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	outDir := t.TempDir()
	proc, store := newTestProcessor(t, srv.URL, outDir, "xlsx")
	img := writeImage(t, t.TempDir(), "scan.jpg")

	report, err := proc.ProcessFile(context.Background(), img)
	require.NoError(t, err, "a page failure should not abort the file")
	assert.Equal(t, 1, report.Failed)

	rs, err := store.ListBySource(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, constants.RunStatusFailed, rs[0].Status)

	// The summary is still written, with no page entries.
	b, err := os.ReadFile(filepath.Join(outDir, "scan_results.json"))
	require.NoError(t, err)
	var results []export.PageResult
	require.NoError(t, json.Unmarshal(b, &results))
	assert.Empty(t, results)
}
