package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// chunkNamespace makes chunk IDs deterministic: re-ingesting the same text
// hits the same point instead of duplicating it.
var chunkNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Chunk is one embeddable unit of a corpus document.
type Chunk struct {
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Match is one retrieval result.
type Match struct {
	Text     string
	Score    float32
	Metadata map[string]string
}

// VectorStore wraps a Qdrant collection of corpus chunks.
type VectorStore struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
	logger     *slog.Logger
}

func NewVectorStore(host string, port int, collection string, vectorSize int, logger *slog.Logger) (*VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port, // gRPC port
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &VectorStore{
		client:     client,
		collection: collection,
		vectorSize: uint64(vectorSize),
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.logger.Info("rag.store.collection_created", "collection", s.collection, "vector_size", s.vectorSize)
	return nil
}

// Upsert stores one chunk, skipping it when the same content is already
// present.
func (s *VectorStore) Upsert(ctx context.Context, c Chunk) error {
	hash := sha256.Sum256([]byte(c.Text))
	id := uuid.NewSHA1(chunkNamespace, hash[:16]).String()

	resp, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
	})
	if err != nil {
		return fmt.Errorf("check point: %w", err)
	}
	if len(resp) > 0 {
		s.logger.Debug("rag.store.duplicate_skipped", "id", id)
		return nil
	}

	payload := map[string]any{"text": c.Text}
	for k, v := range c.Metadata {
		payload[k] = v
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectorsDense(c.Vector),
		Payload: qdrant.NewValueMap(payload),
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// Search returns the limit nearest chunks to the query vector.
func (s *VectorStore) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		m := Match{Score: p.GetScore(), Metadata: map[string]string{}}
		for k, v := range p.GetPayload() {
			if k == "text" {
				m.Text = v.GetStringValue()
				continue
			}
			m.Metadata[k] = v.GetStringValue()
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the number of stored chunks.
func (s *VectorStore) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	return n, nil
}

// Collection returns the collection name.
func (s *VectorStore) Collection() string {
	return s.collection
}

// Close releases the underlying gRPC connection.
func (s *VectorStore) Close() error {
	return s.client.Close()
}
