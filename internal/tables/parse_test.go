package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantab/internal/common"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json fence",
			in:   "Here are the tables:\n```json\n{\"tables\": []}\n```\nDone.",
			want: `{"tables": []}`,
		},
		{
			name: "bare fence",
			in:   "```\n{\"tables\": []}\n```",
			want: `{"tables": []}`,
		},
		{
			name: "unterminated fence",
			in:   "```json\n{\"tables\": []}",
			want: `{"tables": []}`,
		},
		{
			name: "no fence, surrounding prose",
			in:   "The result is {\"tables\": [{\"headers\": []}]} as requested.",
			want: `{"tables": [{"headers": []}]}`,
		},
		{
			name: "no json at all",
			in:   "  I could not find any tables in this image.  ",
			want: "I could not find any tables in this image.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONBlock(tt.in))
		})
	}
}

func TestParseWellFormedResponse(t *testing.T) {
	resp := "```json\n" + `{
		"tables": [
			{
				"table_number": 1,
				"headers": ["Firm", "Founded", "Capital"],
				"rows": [
					["Coal Mining Co", "1891", "2,000,000"],
					["Steel Works", "1899", "5,400,000"]
				]
			}
		]
	}` + "\n```"

	doc, err := Parse(resp, nil)
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, 1, doc.Tables[0].TableNumber)
	assert.Equal(t, []string{"Firm", "Founded", "Capital"}, doc.Tables[0].Headers)
	assert.Equal(t, 2, doc.RowCount())
	assert.True(t, doc.HasTables())
}

func TestParseNoTables(t *testing.T) {
	doc, err := Parse(`{"tables": [], "note": "No tables detected"}`, nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Tables)
	assert.Equal(t, "No tables detected", doc.Note)
	assert.False(t, doc.HasTables())
}

func TestParseLenientRepairs(t *testing.T) {
	// Numeric cells, missing table_number, a ragged row and an unknown key
	// should all be repaired rather than rejected.
	resp := `{
		"tables": [
			{
				"headers": ["Firm", "Year"],
				"rows": [
					["Coal Mining Co", 1891],
					["Steel Works"]
				]
			}
		],
		"model": "whatever"
	}`

	doc, err := Parse(resp, nil)
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, 1, doc.Tables[0].TableNumber)
	assert.Equal(t, []string{"Coal Mining Co", "1891"}, doc.Tables[0].Rows[0])
	assert.Equal(t, []string{"Steel Works", ""}, doc.Tables[0].Rows[1])
}

func TestParseGarbageFails(t *testing.T) {
	_, err := Parse("I see a scanned page with handwriting but no structure.", nil)
	require.ErrorIs(t, err, common.ErrParse)

	_, err = Parse("", nil)
	require.ErrorIs(t, err, common.ErrParse)
}

func TestFallbackKeepsRawText(t *testing.T) {
	doc := Fallback("raw model output")
	assert.Equal(t, "raw model output", doc.RawResponse)
	assert.Equal(t, FallbackNote, doc.Note)
	assert.NotNil(t, doc.Tables)
	assert.False(t, doc.HasTables())
}
