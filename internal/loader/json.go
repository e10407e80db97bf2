package loader

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/querylens-io/querylens/pkg/relation"
)

// LoadJSON stores a JSON array of row objects under name. Columns are the
// union of keys across all objects in first-seen order; keys missing from an
// object become nil. Whole-number JSON numbers come out as int64, everything
// else numeric as float64, and nested structures keep their raw JSON text.
func (l *Loader) LoadJSON(name string, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("json %s: invalid document", name)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return fmt.Errorf("json %s: expected a top-level array of objects", name)
	}

	var columns []string
	known := make(map[string]bool)
	var rows []relation.Row

	var badIndex = -1
	root.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			badIndex = len(rows)
			return false
		}
		row := make(relation.Row)
		item.ForEach(func(key, value gjson.Result) bool {
			col := key.String()
			if !known[col] {
				known[col] = true
				columns = append(columns, col)
			}
			row[col] = jsonValue(value)
			return true
		})
		rows = append(rows, row)
		return true
	})
	if badIndex >= 0 {
		return fmt.Errorf("json %s: element %d is not an object", name, badIndex)
	}

	// Backfill keys an object lacked so every row covers every column.
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = nil
			}
		}
	}

	rel := relation.Relation{Columns: columns, Rows: rows}
	if rel.Columns == nil {
		rel.Columns = []string{}
	}
	if rel.Rows == nil {
		rel.Rows = []relation.Row{}
	}

	l.put(name, "json", rel)
	l.inferEdges(name, rel)
	return nil
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		f := v.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case gjson.String:
		return v.String()
	default:
		// Arrays and objects keep their raw JSON text.
		return v.Raw
	}
}
