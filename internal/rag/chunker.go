// Package rag implements the retrieval helper: chunking, embedding, vector
// storage and query over a local text corpus.
package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunker splits documents into overlapping chunks sized for embedding.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split breaks text on paragraph, sentence and word boundaries, in that order
// of preference, and drops empty chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)

	raw, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]string, 0, len(raw))
	for _, ch := range raw {
		if trimmed := strings.TrimSpace(ch); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks, nil
}
