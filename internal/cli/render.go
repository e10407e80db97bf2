package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/querylens-io/querylens/internal/cli/output"
	"github.com/querylens-io/querylens/pkg/relation"
)

// renderRelation writes columns and rows in the renderer's effective format.
func renderRelation(r *output.Renderer, cols []string, rows []relation.Row) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return renderRowsJSON(r.Writer(), cols, rows)
	case output.ModeCSV:
		return renderRowsCSV(r.Writer(), cols, rows)
	case output.ModeMarkdown:
		return renderRowsMarkdown(r.Writer(), cols, rows)
	default:
		return renderRowsTable(r.Writer(), cols, rows)
	}
}

func renderRowsTable(w io.Writer, cols []string, rows []relation.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(cols))
		for i, col := range cols {
			tr[i] = formatValue(row[col])
		}
		t.AppendRow(tr)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderRowsJSON(w io.Writer, cols []string, rows []relation.Row) error {
	out := struct {
		Columns []string       `json:"columns"`
		Rows    []relation.Row `json:"rows"`
	}{Columns: cols, Rows: rows}
	if out.Rows == nil {
		out.Rows = []relation.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderRowsCSV(w io.Writer, cols []string, rows []relation.Row) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))
	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(row[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderRowsMarkdown(w io.Writer, cols []string, rows []relation.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(row[col])
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
