package tables

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sanitized(t *testing.T, in string) Document {
	t.Helper()
	cleaned, _, err := SanitizeDocument([]byte(in))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(cleaned, &doc))
	return doc
}

func TestSanitizeCoercesCellTypes(t *testing.T) {
	doc := sanitized(t, `{
		"tables": [{
			"table_number": "2",
			"headers": ["A", "B", "C", "D"],
			"rows": [[null, 12.5, true, "text"]]
		}]
	}`)

	require.Len(t, doc.Tables, 1)
	assert.Equal(t, 2, doc.Tables[0].TableNumber)
	assert.Equal(t, []string{"", "12.5", "true", "text"}, doc.Tables[0].Rows[0])
}

func TestSanitizeAssignsTableNumbers(t *testing.T) {
	doc := sanitized(t, `{
		"tables": [
			{"headers": ["A"], "rows": [["x"]]},
			{"headers": ["B"], "rows": [["y"]]}
		]
	}`)

	require.Len(t, doc.Tables, 2)
	assert.Equal(t, 1, doc.Tables[0].TableNumber)
	assert.Equal(t, 2, doc.Tables[1].TableNumber)
}

func TestSanitizeDropsMalformedEntries(t *testing.T) {
	cleaned, repairs, err := SanitizeDocument([]byte(`{
		"tables": [
			"not a table",
			{"headers": ["A"], "rows": [["x"], "not a row"]}
		],
		"note": 42,
		"raw_response": "echo"
	}`))
	require.NoError(t, err)
	require.NotEmpty(t, repairs)

	var doc Document
	require.NoError(t, json.Unmarshal(cleaned, &doc))
	require.Len(t, doc.Tables, 1)
	assert.Len(t, doc.Tables[0].Rows, 1)
	assert.Empty(t, doc.Note)

	require.NoError(t, ValidateAgainstSchema(BuildDocumentSchema(), cleaned))
}

func TestSanitizeMissingTablesDefaultsToEmpty(t *testing.T) {
	cleaned, _, err := SanitizeDocument([]byte(`{"note": "nothing here"}`))
	require.NoError(t, err)
	require.NoError(t, ValidateAgainstSchema(BuildDocumentSchema(), cleaned))

	var doc Document
	require.NoError(t, json.Unmarshal(cleaned, &doc))
	assert.Empty(t, doc.Tables)
	assert.Equal(t, "nothing here", doc.Note)
}

func TestSanitizeRejectsNonObjectInput(t *testing.T) {
	_, _, err := SanitizeDocument([]byte(`["just", "a", "list"]`))
	require.Error(t, err)

	_, _, err = SanitizeDocument([]byte(`{"tables": "nope"}`))
	require.Error(t, err)
}
