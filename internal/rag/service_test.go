package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantab/internal/ollama"
)

// fakeIndex records writes and serves canned search results.
type fakeIndex struct {
	upserts   []Chunk
	lastLimit int
	results   []Match
}

func (f *fakeIndex) Upsert(_ context.Context, c Chunk) error { f.upserts = append(f.upserts, c); return nil }

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int) ([]Match, error) {
	f.lastLimit = limit
	return f.results, nil
}

func (f *fakeIndex) Count(context.Context) (uint64, error) { return uint64(len(f.upserts)), nil }

func embedServer(t *testing.T, vector []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"embedding": vector}))
	}))
}

func TestAddDocumentEmbedsAndStores(t *testing.T) {
	srv := embedServer(t, []float32{0.1, 0.2, 0.3})
	defer srv.Close()

	idx := &fakeIndex{}
	svc := NewService(ServiceConfig{EmbedModel: "nomic-embed-text"},
		ollama.NewClient(srv.URL, 5*time.Second, nil), idx, NewChunker(0, 0), nil)

	err := svc.AddDocument(context.Background(), "Skoda Works, Pilsen", map[string]string{"source": "firms.txt"})
	require.NoError(t, err)

	require.Len(t, idx.upserts, 1)
	assert.Equal(t, "Skoda Works, Pilsen", idx.upserts[0].Text)
	assert.Equal(t, "firms.txt", idx.upserts[0].Metadata["source"])
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, idx.upserts[0].Vector)
}

func TestMatchNamesDefaultsToTen(t *testing.T) {
	srv := embedServer(t, []float32{1, 0})
	defer srv.Close()

	idx := &fakeIndex{results: []Match{
		{Text: "Škoda-Werke AG", Score: 0.93},
		{Text: "Skoda Works", Score: 0.91},
	}}
	svc := NewService(ServiceConfig{EmbedModel: "nomic-embed-text"},
		ollama.NewClient(srv.URL, 5*time.Second, nil), idx, NewChunker(0, 0), nil)

	got, err := svc.MatchNames(context.Background(), "Skoda", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.lastLimit)
	require.Len(t, got, 2)
	assert.Equal(t, "Škoda-Werke AG", got[0].Text)

	_, err = svc.MatchNames(context.Background(), "Skoda", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.lastLimit)
}

func TestBuildContextPrompt(t *testing.T) {
	chunks := []string{"Skoda employed 35,000 workers in 1920.", "Romanian oil output reached 1.8m tons."}
	prompt := BuildContextPrompt("Who employed 35,000 workers?", strings.Join(chunks, ContextSeparator))

	assert.True(t, strings.HasPrefix(prompt, "Context from historical documents:\n"))
	assert.Contains(t, prompt, chunks[0])
	assert.Contains(t, prompt, ContextSeparator)
	assert.Contains(t, prompt, "Question: Who employed 35,000 workers?")
	assert.True(t, strings.HasSuffix(prompt, "Please answer based on the context provided above."))
}
