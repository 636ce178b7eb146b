package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantab/internal/common"
)

func TestGenerate(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "hello from model", "done": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	out, err := c.Generate(context.Background(), "glm4v:9b", "describe this", []string{"aW1n"})
	require.NoError(t, err)
	assert.Equal(t, "hello from model", out)
	assert.Equal(t, "glm4v:9b", got.Model)
	assert.Equal(t, []string{"aW1n"}, got.Images)
	assert.False(t, got.Stream)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Generate(context.Background(), "missing", "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "OLLAMA_HTTP", appErr.Code)
}

func TestEmbedAndBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	vec, err := c.Embed(context.Background(), "nomic-embed-text", "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	vecs, err := c.EmbedBatch(context.Background(), "nomic-embed-text", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 4, calls)
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Embed(context.Background(), "m", "text")
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	require.NoError(t, c.Health(context.Background()))

	srv.Close()
	require.ErrorIs(t, c.Health(context.Background()), common.ErrUnavailable)
}

func TestPostJSONUsesContextRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := common.WithRequestID(context.Background(), "run-42")
	ctx = common.WithSource(ctx, "/data/ledger.pdf")

	c := NewClient(srv.URL, 5*time.Second, logger)
	_, err := c.Generate(ctx, "m", "p", nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"req_id":"run-42"`)
	assert.Contains(t, buf.String(), `"source":"/data/ledger.pdf"`)
}
