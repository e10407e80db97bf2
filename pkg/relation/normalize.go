package relation

import "math"

// Sanitize replaces non-finite float values (NaN, +Inf, -Inf) with nil,
// recursing through rows, maps, and slices. JSON encoders either reject or
// silently mangle non-finite numbers, so nothing may cross the API boundary
// without passing through here.
func Sanitize(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case Row:
		return SanitizeRow(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	case []Row:
		out := make([]Row, len(val))
		for i, row := range val {
			out[i] = SanitizeRow(row)
		}
		return out
	default:
		return v
	}
}

// SanitizeRow returns a copy of the row with non-finite floats nilled out.
func SanitizeRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = Sanitize(v)
	}
	return out
}

// Sanitized returns a copy of the relation safe for JSON encoding.
func (r Relation) Sanitized() Relation {
	cols := make([]string, len(r.Columns))
	copy(cols, r.Columns)
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = SanitizeRow(row)
	}
	return Relation{Columns: cols, Rows: rows}
}
