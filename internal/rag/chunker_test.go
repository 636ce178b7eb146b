package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplitsLongText(t *testing.T) {
	c := NewChunker(200, 20)

	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("The company expanded its operations during the early decades. ")
	}

	chunks, err := c.Split(b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 200)
		assert.NotEmpty(t, strings.TrimSpace(ch))
	}
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 100)
	chunks, err := c.Split("A short archival note.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short archival note.", chunks[0])
}

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(1000, 100)
	chunks, err := c.Split("   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, 3000, c.chunkSize)
	assert.Equal(t, 300, c.chunkOverlap)

	// Overlap >= size is clamped rather than accepted.
	c = NewChunker(100, 100)
	assert.Equal(t, 10, c.chunkOverlap)
}
