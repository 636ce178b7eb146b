package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"scantab/internal/ingest"
	"scantab/internal/ollama"
)

// ContextSeparator joins retrieved chunks into the prompt context block.
const ContextSeparator = "\n\n---\n\n"

// ServiceConfig holds the models and batching used by the RAG service.
type ServiceConfig struct {
	EmbedModel     string
	ChatModel      string
	EmbedBatchSize int
}

// Index is the vector storage a Service reads and writes.
type Index interface {
	Upsert(ctx context.Context, c Chunk) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Count(ctx context.Context) (uint64, error)
}

// Service answers questions over a chunked, embedded text corpus.
type Service struct {
	cfg     ServiceConfig
	model   *ollama.Client
	store   Index
	chunker *Chunker
	logger  *slog.Logger
}

func NewService(cfg ServiceConfig, model *ollama.Client, store Index, chunker *Chunker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	return &Service{cfg: cfg, model: model, store: store, chunker: chunker, logger: logger}
}

// AddDocument embeds a single text and stores it with its metadata.
func (s *Service) AddDocument(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := s.model.Embed(ctx, s.cfg.EmbedModel, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	return s.store.Upsert(ctx, Chunk{Text: text, Vector: vec, Metadata: metadata})
}

// AddDocumentChunked splits a large document, embeds the chunks in batches,
// and stores each chunk with positional metadata. Returns chunks stored.
func (s *Service) AddDocumentChunked(ctx context.Context, text string, metadata map[string]string) (int, error) {
	chunks, err := s.chunker.Split(text)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	stored := 0
	for i := 0; i < len(chunks); i += s.cfg.EmbedBatchSize {
		end := i + s.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		vectors, err := s.model.EmbedBatch(ctx, s.cfg.EmbedModel, batch)
		if err != nil {
			return stored, fmt.Errorf("embed batch %d..%d: %w", i, end, err)
		}
		for j, chunkText := range batch {
			md := map[string]string{}
			for k, v := range metadata {
				md[k] = v
			}
			md["chunk_index"] = strconv.Itoa(i + j)
			md["total_chunks"] = strconv.Itoa(len(chunks))
			if err := s.store.Upsert(ctx, Chunk{Text: chunkText, Vector: vectors[j], Metadata: md}); err != nil {
				return stored, err
			}
			stored++
		}
	}
	return stored, nil
}

// IngestStats aggregates a folder ingest.
type IngestStats struct {
	Files  int
	Chunks int
}

// IngestFolder adds every file with the given extension (default .txt) from
// folder, chunked, with filename metadata. Files are processed in natural
// name order.
func (s *Service) IngestFolder(ctx context.Context, folder, extension string) (IngestStats, error) {
	if extension == "" {
		extension = ".txt"
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return IngestStats{}, fmt.Errorf("read corpus folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return ingest.NaturalLess(names[i], names[j]) })

	var stats IngestStats
	for _, name := range names {
		path := filepath.Join(folder, name)
		start := time.Now()
		b, err := os.ReadFile(path)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", path, err)
		}
		n, err := s.AddDocumentChunked(ctx, string(b), map[string]string{
			"filename": name,
			"source":   path,
		})
		if err != nil {
			return stats, fmt.Errorf("ingest %s: %w", path, err)
		}
		stats.Files++
		stats.Chunks += n
		s.logger.Info("rag.ingest.file",
			"file", name,
			"chunks", n,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return stats, nil
}

// Search embeds the query and returns the top-n chunks.
func (s *Service) Search(ctx context.Context, query string, n int) ([]Match, error) {
	vec, err := s.model.Embed(ctx, s.cfg.EmbedModel, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Search(ctx, vec, n)
}

// Answer retrieves the top-n chunks for question, builds a context-grounded
// prompt and asks the chat model. With an empty retrieval the question is
// asked without context; callers should surface that to the user.
func (s *Service) Answer(ctx context.Context, question string, n int) (string, []Match, error) {
	matches, err := s.Search(ctx, question, n)
	if err != nil {
		return "", nil, err
	}

	prompt := question
	if len(matches) > 0 {
		texts := make([]string, 0, len(matches))
		for _, m := range matches {
			texts = append(texts, m.Text)
		}
		prompt = BuildContextPrompt(question, strings.Join(texts, ContextSeparator))
	} else {
		s.logger.Warn("rag.answer.no_context", "question_len", len(question))
	}

	answer, err := s.model.Generate(ctx, s.cfg.ChatModel, prompt, nil)
	if err != nil {
		return "", matches, fmt.Errorf("generate answer: %w", err)
	}
	return answer, matches, nil
}

// MatchNames finds entries similar to name. Embedding distance doubles as a
// fuzzy matcher for archival name variants.
func (s *Service) MatchNames(ctx context.Context, name string, n int) ([]Match, error) {
	if n <= 0 {
		n = 10
	}
	return s.Search(ctx, name, n)
}

// Stats returns the number of stored chunks.
func (s *Service) Stats(ctx context.Context) (uint64, error) {
	return s.store.Count(ctx)
}

// BuildContextPrompt frames a question with retrieved document context.
func BuildContextPrompt(question, context string) string {
	return "Context from historical documents:\n" + context +
		"\n\nQuestion: " + question +
		"\n\nPlease answer based on the context provided above."
}
