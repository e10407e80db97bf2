package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/querylens-io/querylens/pkg/relation"
)

// LoadCSV reads a header row plus data rows, infers a type per column, and
// stores the result under name. Inference tries int64, then float64, then
// bool, then falls back to string; empty cells and NULL markers become nil.
func (l *Loader) LoadCSV(name string, r io.Reader) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return fmt.Errorf("csv %s: empty file", name)
	}
	if err != nil {
		return fmt.Errorf("csv %s: failed to read header: %w", name, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("csv %s: %w", name, err)
		}
		records = append(records, record)
	}

	kinds := make([]valueKind, len(columns))
	for i := range columns {
		kinds[i] = inferColumnKind(records, i)
	}

	rel := relation.Relation{Columns: columns, Rows: make([]relation.Row, 0, len(records))}
	for _, record := range records {
		row := make(relation.Row, len(columns))
		for i, col := range columns {
			row[col] = convertCell(record[i], kinds[i])
		}
		rel.Rows = append(rel.Rows, row)
	}

	l.put(name, "csv", rel)
	l.inferEdges(name, rel)
	return nil
}

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindBool
	kindString
)

func isNullCell(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NULL", "null":
		return true
	}
	return false
}

// inferColumnKind finds the narrowest kind every non-null cell of column i
// fits. A column of only nulls stays string.
func inferColumnKind(records [][]string, i int) valueKind {
	okInt, okFloat, okBool := true, true, true
	seen := false
	for _, record := range records {
		if i >= len(record) || isNullCell(record[i]) {
			continue
		}
		seen = true
		cell := strings.TrimSpace(record[i])

		if okInt {
			_, err := strconv.ParseInt(cell, 10, 64)
			okInt = err == nil
		}
		if okFloat {
			_, err := strconv.ParseFloat(cell, 64)
			okFloat = err == nil
		}
		if okBool {
			okBool = isBoolCell(cell)
		}
		if !okInt && !okFloat && !okBool {
			return kindString
		}
	}
	switch {
	case !seen:
		return kindString
	case okInt:
		return kindInt
	case okFloat:
		return kindFloat
	case okBool:
		return kindBool
	default:
		return kindString
	}
}

func isBoolCell(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

func convertCell(s string, kind valueKind) any {
	if isNullCell(s) {
		return nil
	}
	cell := strings.TrimSpace(s)
	switch kind {
	case kindInt:
		n, _ := strconv.ParseInt(cell, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(cell, 64)
		return f
	case kindBool:
		return strings.EqualFold(cell, "true")
	default:
		return s
	}
}
