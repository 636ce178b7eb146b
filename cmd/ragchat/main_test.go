package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncatePreview(t *testing.T) {
	assert.Equal(t, "short text", truncatePreview("short\ntext", previewLen))

	long := strings.Repeat("x", previewLen+20)
	got := truncatePreview(long, previewLen)
	assert.Equal(t, strings.Repeat("x", previewLen)+"...", got)

	// A multi-byte rune straddling the cut must not be split.
	umlauts := strings.Repeat("ö", previewLen+5)
	got = truncatePreview(umlauts, previewLen)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ö", previewLen)+"...", got)
}
