// Package relation defines the tabular value that flows between query steps:
// an ordered column list plus a sequence of rows. Relations are snapshots;
// operations return new Relations and never mutate their input.
package relation

import (
	"fmt"
	"strings"
)

// Row maps column name to a scalar value (int64, float64, string, bool, or nil).
type Row map[string]any

// Relation is an ordered set of columns with row data.
type Relation struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates a Relation from a column list and rows.
// Column names must already be unique; use DedupColumns first if they may not be.
func New(columns []string, rows []Row) Relation {
	return Relation{Columns: columns, Rows: rows}
}

// Empty returns a Relation with the given columns and no rows.
func Empty(columns ...string) Relation {
	return Relation{Columns: columns, Rows: []Row{}}
}

// RowCount returns the number of rows.
func (r Relation) RowCount() int {
	return len(r.Rows)
}

// HasColumn reports whether the relation contains the exact column name.
func (r Relation) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the relation.
func (r Relation) Clone() Relation {
	cols := make([]string, len(r.Columns))
	copy(cols, r.Columns)
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			nr[k] = v
		}
		rows[i] = nr
	}
	return Relation{Columns: cols, Rows: rows}
}

// Project returns a new relation containing only the named columns, in the
// given order. Names not present in the relation are ignored.
func (r Relation) Project(columns []string) Relation {
	kept := make([]string, 0, len(columns))
	for _, c := range columns {
		if r.HasColumn(c) {
			kept = append(kept, c)
		}
	}
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		nr := make(Row, len(kept))
		for _, c := range kept {
			nr[c] = row[c]
		}
		rows[i] = nr
	}
	return Relation{Columns: kept, Rows: rows}
}

// Head returns a copy of the relation truncated to at most n rows.
func (r Relation) Head(n int) Relation {
	if n < 0 || n >= len(r.Rows) {
		return r.Clone()
	}
	cols := make([]string, len(r.Columns))
	copy(cols, r.Columns)
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		nr := make(Row, len(r.Rows[i]))
		for k, v := range r.Rows[i] {
			nr[k] = v
		}
		rows[i] = nr
	}
	return Relation{Columns: cols, Rows: rows}
}

// Values returns the row's values in the given column order.
func (row Row) Values(columns []string) []any {
	vals := make([]any, len(columns))
	for i, c := range columns {
		vals[i] = row[c]
	}
	return vals
}

// DedupColumns makes column names unique by appending a numeric suffix
// (_2, _3, ...) to later duplicates. The first occurrence keeps its name.
// Join output and CSV headers are deduplicated with this rule, and the
// alias resolver relies on the same suffix convention when matching columns
// of already-joined relations.
func DedupColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, c := range columns {
		n := seen[c]
		seen[c] = n + 1
		if n == 0 {
			out[i] = c
			continue
		}
		name := fmt.Sprintf("%s_%d", c, n+1)
		for seen[name] > 0 {
			n++
			name = fmt.Sprintf("%s_%d", c, n+1)
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

// BaseName strips a numeric deduplication suffix (_2, _3, ...) from a column
// name. Returns the input unchanged when no such suffix is present.
func BaseName(column string) string {
	i := strings.LastIndex(column, "_")
	if i <= 0 || i == len(column)-1 {
		return column
	}
	for _, ch := range column[i+1:] {
		if ch < '0' || ch > '9' {
			return column
		}
	}
	return column[:i]
}
