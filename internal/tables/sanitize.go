package tables

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SanitizeDocument repairs the common ways models deviate from the document
// schema so the page can still validate:
//   - unknown top-level / per-table keys are dropped
//   - table_number is coerced to an integer, or assigned by position
//   - header and cell values are coerced to strings (numbers, bools)
//   - null cells become ""
//   - rows shorter than the header row are padded with ""
//
// It returns the cleaned JSON plus a list of applied repairs.
func SanitizeDocument(raw []byte) ([]byte, []string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var repairs []string

	for k := range m {
		if k != "tables" && k != "note" {
			delete(m, k)
			repairs = append(repairs, "dropped key "+k)
		}
	}

	if v, ok := m["note"]; ok {
		if s, ok := v.(string); ok {
			m["note"] = s
		} else {
			delete(m, "note")
			repairs = append(repairs, "dropped non-string note")
		}
	}

	rawTables, ok := m["tables"].([]any)
	if !ok {
		if m["tables"] == nil {
			m["tables"] = []any{}
			repairs = append(repairs, "defaulted missing tables to []")
			rawTables = nil
		} else {
			return nil, nil, fmt.Errorf("sanitize: tables is not a list")
		}
	}

	cleanTables := make([]any, 0, len(rawTables))
	for i, rt := range rawTables {
		tm, ok := rt.(map[string]any)
		if !ok {
			repairs = append(repairs, fmt.Sprintf("dropped non-object table %d", i+1))
			continue
		}

		out := map[string]any{}

		num, coerced := coerceInt(tm["table_number"])
		if !coerced || num < 1 {
			num = i + 1
			repairs = append(repairs, fmt.Sprintf("assigned table_number %d", num))
		}
		out["table_number"] = num

		headers := coerceStringList(tm["headers"], &repairs, fmt.Sprintf("table %d headers", num))
		out["headers"] = headers

		rawRows, _ := tm["rows"].([]any)
		rows := make([]any, 0, len(rawRows))
		for j, rr := range rawRows {
			cells, ok := rr.([]any)
			if !ok {
				repairs = append(repairs, fmt.Sprintf("dropped non-list row %d in table %d", j+1, num))
				continue
			}
			row := coerceStringList(cells, &repairs, fmt.Sprintf("table %d row %d", num, j+1))
			for len(row) < len(headers) {
				row = append(row, "")
			}
			if len(row) > len(headers) && len(headers) > 0 {
				repairs = append(repairs, fmt.Sprintf("row %d in table %d wider than headers", j+1, num))
			}
			rows = append(rows, toAnyList(row))
		}
		out["rows"] = rows

		cleanTables = append(cleanTables, out)
	}
	m["tables"] = cleanTables

	cleaned, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return cleaned, repairs, nil
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// coerceStringList turns a list of arbitrary JSON values into strings.
// Missing or non-list input yields an empty list.
func coerceStringList(v any, repairs *[]string, where string) []string {
	items, ok := v.([]any)
	if !ok {
		if v != nil {
			*repairs = append(*repairs, "replaced non-list "+where)
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case string:
			out = append(out, t)
		case nil:
			out = append(out, "")
			*repairs = append(*repairs, "null cell in "+where)
		case json.Number:
			out = append(out, t.String())
			*repairs = append(*repairs, "numeric cell in "+where)
		case bool:
			out = append(out, fmt.Sprintf("%t", t))
			*repairs = append(*repairs, "bool cell in "+where)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				out = append(out, "")
			} else {
				out = append(out, string(b))
			}
			*repairs = append(*repairs, "flattened cell in "+where)
		}
	}
	return out
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
