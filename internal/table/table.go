// Package table holds the in-memory tabular shape shared by every sheet the
// dashboard reads, plus the header handling that makes loosely named sheets usable.
package table

import (
	"regexp"
	"strconv"
	"strings"
)

// Table is a header plus string rows, the shape every data source returns.
// Rows may be shorter than the header; missing cells read as "".
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Index returns the position of the first column with the given name.
func (t Table) Index(column string) (int, bool) {
	for idx, name := range t.Header {
		if name == column {
			return idx, true
		}
	}
	return -1, false
}

// Has reports whether the table has a column with the given name.
func (t Table) Has(column string) bool {
	_, ok := t.Index(column)
	return ok
}

// Value returns the trimmed cell at (row, idx), or "" when out of range.
func Value(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Clone returns a deep copy so callers can mutate without touching the source.
func (t Table) Clone() Table {
	out := Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Records returns each row as a column->value map. Earlier columns win on
// duplicate names.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]string, len(t.Header))
		for idx, name := range t.Header {
			if _, exists := record[name]; exists {
				continue
			}
			record[name] = Value(row, idx)
		}
		out = append(out, record)
	}
	return out
}

var nonLabelChars = regexp.MustCompile(`[^a-z0-9_]`)

// NormalizeLabel canonicalizes a raw column label: trim, lowercase, spaces to
// underscores, then drop anything outside [a-z0-9_].
func NormalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "_")
	return nonLabelChars.ReplaceAllString(value, "")
}

// NormalizeColumns returns a copy of t with every header normalized. Colliding
// labels are left as-is.
func NormalizeColumns(t Table) Table {
	out := t.Clone()
	for idx, header := range out.Header {
		out.Header[idx] = NormalizeLabel(header)
	}
	return out
}

// CleanHeaders makes a raw header row safe to index: blanks become col_<i>,
// labels are lowercased with spaces turned to underscores, and repeats get the
// column index appended.
func CleanHeaders(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	cleaned := make([]string, 0, len(headers))
	for idx, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = "col_" + strconv.Itoa(idx)
		}
		label := strings.ReplaceAll(strings.ToLower(header), " ", "_")
		if seen[label] {
			label = label + "_" + strconv.Itoa(idx)
		}
		seen[label] = true
		cleaned = append(cleaned, label)
	}
	return cleaned
}

// Rename renames the first column called from to to. It is a no-op when from
// is missing or when to already exists.
func (t *Table) Rename(from, to string) bool {
	if from == to || t.Has(to) {
		return false
	}
	idx, ok := t.Index(from)
	if !ok {
		return false
	}
	t.Header[idx] = to
	return true
}

// Ensure appends an empty column for every name not already present.
func (t *Table) Ensure(columns ...string) {
	for _, column := range columns {
		if !t.Has(column) {
			t.Header = append(t.Header, column)
		}
	}
}

// Pad extends every row to the header width.
func (t *Table) Pad() {
	for i, row := range t.Rows {
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
}
