// Package tables turns free-text model responses into structured tables.
package tables

// Table is one extracted table: header row plus data rows.
type Table struct {
	TableNumber int        `json:"table_number"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
}

// Document is the parsed result for one page image. When structured parsing
// fails, Tables is empty and RawResponse carries the model's original text.
type Document struct {
	Tables      []Table `json:"tables"`
	Note        string  `json:"note,omitempty"`
	RawResponse string  `json:"raw_response,omitempty"`
}

// HasTables reports whether any table carries at least one data row.
func (d Document) HasTables() bool {
	for _, t := range d.Tables {
		if len(t.Rows) > 0 {
			return true
		}
	}
	return false
}

// RowCount totals data rows across all tables.
func (d Document) RowCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Rows)
	}
	return n
}
