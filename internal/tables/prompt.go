package tables

// ExtractionPrompt instructs the vision model to return tables in the shape
// the parser expects. The JSON example doubles as the contract; deviations are
// handled by the lenient sanitize pass.
const ExtractionPrompt = `Analyze this image and extract any tables you find.
For each table:
1. Identify all columns and their headers
2. Extract all rows of data
3. Preserve the table structure

Return the result as a JSON object with this structure:
{
    "tables": [
        {
            "table_number": 1,
            "headers": ["Column1", "Column2", ...],
            "rows": [
                ["value1", "value2", ...],
                ["value1", "value2", ...]
            ]
        }
    ]
}

If no tables are found, return: {"tables": [], "note": "No tables detected"}
`
