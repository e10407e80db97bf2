package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"github.com/querylens-io/querylens/pkg/eval"
	"github.com/querylens-io/querylens/pkg/relation"
)

const pgForeignKeySQL = `
SELECT tc.table_name,
       kcu.column_name,
       ccu.table_name  AS ref_table,
       ccu.column_name AS ref_column,
       rc.delete_rule,
       rc.update_rule
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
JOIN information_schema.referential_constraints rc
  ON tc.constraint_name = rc.constraint_name AND tc.table_schema = rc.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'`

// LoadPostgres copies tables from a live Postgres database into the store,
// along with their declared foreign keys. An empty table list means every
// base table in the public schema.
func (l *Loader) LoadPostgres(ctx context.Context, dsn string, tables []string) ([]string, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	if len(tables) == 0 {
		if tables, err = listPublicTables(ctx, db); err != nil {
			return nil, err
		}
	}

	var loaded []string
	for _, table := range tables {
		rel, err := readTable(ctx, db, table)
		if err != nil {
			return loaded, fmt.Errorf("failed to import table %s: %w", table, err)
		}
		l.put(table, "postgres", rel)
		loaded = append(loaded, table)
		l.logger.Info("imported table", "table", table, "rows", rel.RowCount())
	}

	if l.graph != nil {
		if err := l.importForeignKeys(ctx, db, loaded); err != nil {
			// FK metadata is advisory; the tables themselves imported fine.
			l.logger.Warn("failed to import foreign keys", "error", err)
		}
	}
	return loaded, nil
}

func listPublicTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func readTable(ctx context.Context, db *sql.DB, table string) (relation.Relation, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+eval.QuoteIdent(table))
	if err != nil {
		return relation.Relation{}, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return relation.Relation{}, err
	}
	rel := relation.Relation{Columns: relation.DedupColumns(cols), Rows: []relation.Row{}}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return relation.Relation{}, err
		}
		row := make(relation.Row, len(cols))
		for i, col := range rel.Columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		rel.Rows = append(rel.Rows, row)
	}
	return rel, rows.Err()
}

func (l *Loader) importForeignKeys(ctx context.Context, db *sql.DB, imported []string) error {
	want := make(map[string]bool, len(imported))
	for _, t := range imported {
		want[strings.ToLower(t)] = true
	}

	rows, err := db.QueryContext(ctx, pgForeignKeySQL)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var table, column, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&table, &column, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return err
		}
		if !want[strings.ToLower(table)] || !want[strings.ToLower(refTable)] {
			continue
		}
		l.graph.AddForeignKey(table, refTable, []string{column}, []string{refColumn}, onDelete, onUpdate)
	}
	return rows.Err()
}
