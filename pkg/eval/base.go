package eval

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/querylens-io/querylens/pkg/relation"
)

// BaseSQLSession provides common database/sql functionality for sessions.
// Embed this struct in concrete session implementations to get standard
// Load, Exec, Query, and Close implementations.
type BaseSQLSession struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// Close closes the underlying database.
func (b *BaseSQLSession) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing evaluation session")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLSession) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("session not open")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Load materializes the relation as a table named name, replacing any
// existing table. Column types are inferred from the first non-null value
// each column carries.
func (b *BaseSQLSession) Load(ctx context.Context, name string, rel relation.Relation) error {
	if b.DB == nil {
		return fmt.Errorf("session not open")
	}
	if len(rel.Columns) == 0 {
		return fmt.Errorf("relation %q has no columns", name)
	}

	quoted := QuoteIdent(name)
	if err := b.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoted)); err != nil {
		return err
	}

	defs := make([]string, len(rel.Columns))
	for i, col := range rel.Columns {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdent(col), inferType(rel, col))
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", "))
	if err := b.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %q: %w", name, err)
	}

	if len(rel.Rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(rel.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoted, strings.Join(placeholders, ", "))

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	for _, row := range rel.Rows {
		if _, err := stmt.ExecContext(ctx, row.Values(rel.Columns)...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert into %q: %w", name, err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to close insert statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load of %q: %w", name, err)
	}

	if b.Logger != nil {
		b.Logger.Debug("loaded table", "table", name, "rows", len(rel.Rows), "columns", len(rel.Columns))
	}
	return nil
}

// Query executes a SELECT and scans the result into a relation. Duplicate
// result column names are deduplicated with numeric suffixes so every column
// stays addressable; driver []byte values become strings.
func (b *BaseSQLSession) Query(ctx context.Context, sqlStr string) (relation.Relation, error) {
	if b.DB == nil {
		return relation.Relation{}, fmt.Errorf("session not open")
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return relation.Relation{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return relation.Relation{}, fmt.Errorf("failed to read result columns: %w", err)
	}
	cols = relation.DedupColumns(cols)

	rel := relation.Relation{Columns: cols, Rows: []relation.Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return relation.Relation{}, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(relation.Row, len(cols))
		for i, col := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = values[i]
			}
		}
		rel.Rows = append(rel.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return relation.Relation{}, fmt.Errorf("error iterating result rows: %w", err)
	}
	return rel, nil
}

// QuoteIdent quotes an identifier with standard double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// inferType picks a column type from the first non-null value in the column.
// Columns with no values default to VARCHAR.
func inferType(rel relation.Relation, col string) string {
	for _, row := range rel.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case bool:
			return "BOOLEAN"
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return "BIGINT"
		case float32, float64:
			return "DOUBLE"
		default:
			return "VARCHAR"
		}
	}
	return "VARCHAR"
}
