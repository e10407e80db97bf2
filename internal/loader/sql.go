package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/querylens-io/querylens/pkg/relation"
	"github.com/querylens-io/querylens/pkg/steps"
)

// foreignKey is one declared FK: Columns on the owning table reference
// RefColumns on RefTable.
type foreignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// schemaTable is one CREATE TABLE plus any rows INSERTed for it.
type schemaTable struct {
	Name        string
	Columns     []string
	ForeignKeys []foreignKey
	Rows        []relation.Row
}

// LoadSQL applies a DDL script: CREATE TABLE bodies (with inline and
// table-level foreign keys), ALTER TABLE ... ADD FOREIGN KEY, and INSERT
// statements. Returns the names of the tables created, sorted by first
// appearance. The script is tokenized with the same lexer the compiler uses,
// so comments and quoted names need no special casing.
func (l *Loader) LoadSQL(script string) ([]string, error) {
	tables, err := parseSchema(script)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		rel := relation.Relation{Columns: t.Columns, Rows: t.Rows}
		if rel.Rows == nil {
			rel.Rows = []relation.Row{}
		}
		l.put(t.Name, "sql", rel)
		names = append(names, t.Name)
	}
	// Edges second: every endpoint table node exists by now.
	if l.graph != nil {
		for _, t := range tables {
			for _, fk := range t.ForeignKeys {
				l.graph.AddForeignKey(t.Name, fk.RefTable, fk.Columns, fk.RefColumns, fk.OnDelete, fk.OnUpdate)
			}
		}
	}
	return names, nil
}

// parseSchema splits the script into semicolon-delimited statements and
// parses the ones it understands. Unknown statements (SET, DROP, CREATE
// INDEX and the like) are skipped.
func parseSchema(script string) ([]*schemaTable, error) {
	toks := steps.Tokenize(script)

	var tables []*schemaTable
	byName := make(map[string]*schemaTable)

	stmt := make([]steps.Token, 0, 64)
	flush := func() error {
		if len(stmt) == 0 {
			return nil
		}
		defer func() { stmt = stmt[:0] }()
		return parseStatement(stmt, &tables, byName)
	}

	for _, tok := range toks {
		if tok.Type == steps.TOKEN_SEMICOLON || tok.Type == steps.TOKEN_EOF {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		stmt = append(stmt, tok)
	}
	return tables, nil
}

func parseStatement(toks []steps.Token, tables *[]*schemaTable, byName map[string]*schemaTable) error {
	switch {
	case len(toks) >= 2 && toks[0].Type == steps.TOKEN_CREATE && isWord(toks[1], "table"):
		t, err := parseCreateTable(toks)
		if err != nil {
			return err
		}
		if existing, ok := byName[strings.ToLower(t.Name)]; ok {
			existing.Columns = t.Columns
			existing.ForeignKeys = append(existing.ForeignKeys, t.ForeignKeys...)
			return nil
		}
		*tables = append(*tables, t)
		byName[strings.ToLower(t.Name)] = t
		return nil

	case isWord(toks[0], "alter") && len(toks) >= 3 && isWord(toks[1], "table"):
		return parseAlterTable(toks, tables, byName)

	case isWord(toks[0], "insert"):
		return parseInsert(toks, tables, byName)

	default:
		return nil
	}
}

// parseCreateTable parses CREATE TABLE [IF NOT EXISTS] name ( body ) ...
// Trailing engine/charset options after the closing paren are ignored.
func parseCreateTable(toks []steps.Token) (*schemaTable, error) {
	i := 2 // past CREATE TABLE
	for i < len(toks) && (isWord(toks[i], "if") || toks[i].Type == steps.TOKEN_NOT || isWord(toks[i], "exists")) {
		i++
	}
	if i >= len(toks) || toks[i].Type != steps.TOKEN_IDENT {
		return nil, fmt.Errorf("malformed CREATE TABLE near offset %d", offsetAt(toks, i))
	}
	t := &schemaTable{Name: toks[i].Literal}
	i++

	if i >= len(toks) || toks[i].Type != steps.TOKEN_LPAREN {
		return nil, fmt.Errorf("CREATE TABLE %s: expected column list", t.Name)
	}
	body, _, err := parenBody(toks, i)
	if err != nil {
		return nil, fmt.Errorf("CREATE TABLE %s: %w", t.Name, err)
	}

	for _, item := range splitTop(body) {
		if len(item) == 0 {
			continue
		}
		switch {
		case isWord(item[0], "foreign"):
			fk, err := parseForeignKey(item)
			if err != nil {
				return nil, fmt.Errorf("CREATE TABLE %s: %w", t.Name, err)
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		case isWord(item[0], "constraint"):
			// CONSTRAINT name FOREIGN KEY (...) REFERENCES ...
			rest := item[1:]
			if len(rest) > 0 && rest[0].Type == steps.TOKEN_IDENT && len(rest) > 1 && isWord(rest[1], "foreign") {
				rest = rest[1:]
			}
			if len(rest) > 0 && isWord(rest[0], "foreign") {
				fk, err := parseForeignKey(rest)
				if err != nil {
					return nil, fmt.Errorf("CREATE TABLE %s: %w", t.Name, err)
				}
				t.ForeignKeys = append(t.ForeignKeys, fk)
			}
		case isWord(item[0], "primary"), isWord(item[0], "unique"),
			isWord(item[0], "key"), isWord(item[0], "index"), isWord(item[0], "check"):
			// Constraint clauses that carry no relationship information.
		default:
			if item[0].Type != steps.TOKEN_IDENT {
				continue
			}
			t.Columns = append(t.Columns, item[0].Literal)
			// Inline column-level REFERENCES.
			for j := 1; j < len(item); j++ {
				if !isWord(item[j], "references") {
					continue
				}
				fk, err := parseReferences(item[j:], []string{item[0].Literal})
				if err != nil {
					return nil, fmt.Errorf("CREATE TABLE %s: %w", t.Name, err)
				}
				t.ForeignKeys = append(t.ForeignKeys, fk)
				break
			}
		}
	}
	return t, nil
}

// parseForeignKey parses FOREIGN KEY ( cols ) REFERENCES table ( cols )
// [ON DELETE action] [ON UPDATE action].
func parseForeignKey(toks []steps.Token) (foreignKey, error) {
	i := 0
	for i < len(toks) && (isWord(toks[i], "foreign") || isWord(toks[i], "key")) {
		i++
	}
	if i >= len(toks) || toks[i].Type != steps.TOKEN_LPAREN {
		return foreignKey{}, fmt.Errorf("malformed FOREIGN KEY clause")
	}
	body, next, err := parenBody(toks, i)
	if err != nil {
		return foreignKey{}, err
	}
	return parseReferences(toks[next:], identList(body))
}

// parseReferences parses REFERENCES table ( cols ) [ON DELETE a] [ON UPDATE a]
// for the given owning columns.
func parseReferences(toks []steps.Token, ownColumns []string) (foreignKey, error) {
	fk := foreignKey{Columns: ownColumns}

	i := 0
	if i < len(toks) && isWord(toks[i], "references") {
		i++
	}
	if i >= len(toks) || toks[i].Type != steps.TOKEN_IDENT {
		return fk, fmt.Errorf("REFERENCES missing table name")
	}
	fk.RefTable = toks[i].Literal
	i++

	if i < len(toks) && toks[i].Type == steps.TOKEN_LPAREN {
		body, next, err := parenBody(toks, i)
		if err != nil {
			return fk, err
		}
		fk.RefColumns = identList(body)
		i = next
	}

	for i < len(toks) {
		if toks[i].Type != steps.TOKEN_ON || i+1 >= len(toks) {
			i++
			continue
		}
		target := strings.ToLower(toks[i+1].Literal)
		action, next := parseAction(toks, i+2)
		switch target {
		case "delete":
			fk.OnDelete = action
		case "update":
			fk.OnUpdate = action
		}
		i = next
	}
	return fk, nil
}

// parseAction collects a referential action: CASCADE, RESTRICT, SET NULL,
// NO ACTION.
func parseAction(toks []steps.Token, i int) (string, int) {
	if i >= len(toks) {
		return "", i
	}
	first := strings.ToUpper(toks[i].Literal)
	switch first {
	case "SET", "NO":
		if i+1 < len(toks) {
			return first + " " + strings.ToUpper(toks[i+1].Literal), i + 2
		}
	}
	return first, i + 1
}

// parseAlterTable handles ALTER TABLE name ADD [CONSTRAINT x] FOREIGN KEY ...
func parseAlterTable(toks []steps.Token, tables *[]*schemaTable, byName map[string]*schemaTable) error {
	if toks[2].Type != steps.TOKEN_IDENT {
		return fmt.Errorf("malformed ALTER TABLE")
	}
	name := toks[2].Literal

	i := 3
	if i < len(toks) && isWord(toks[i], "add") {
		i++
	}
	if i < len(toks) && isWord(toks[i], "constraint") {
		i += 2 // skip CONSTRAINT and its name
	}
	if i >= len(toks) || !isWord(toks[i], "foreign") {
		return nil // some other ALTER, ignore
	}
	fk, err := parseForeignKey(toks[i:])
	if err != nil {
		return fmt.Errorf("ALTER TABLE %s: %w", name, err)
	}

	t, ok := byName[strings.ToLower(name)]
	if !ok {
		t = &schemaTable{Name: name}
		*tables = append(*tables, t)
		byName[strings.ToLower(name)] = t
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return nil
}

// parseInsert handles INSERT INTO name [( cols )] VALUES ( ... ) [, ( ... )].
func parseInsert(toks []steps.Token, tables *[]*schemaTable, byName map[string]*schemaTable) error {
	i := 1
	if i < len(toks) && isWord(toks[i], "into") {
		i++
	}
	if i >= len(toks) || toks[i].Type != steps.TOKEN_IDENT {
		return fmt.Errorf("malformed INSERT statement")
	}
	name := toks[i].Literal
	i++

	t, ok := byName[strings.ToLower(name)]
	if !ok {
		t = &schemaTable{Name: name}
		*tables = append(*tables, t)
		byName[strings.ToLower(name)] = t
	}

	columns := t.Columns
	if i < len(toks) && toks[i].Type == steps.TOKEN_LPAREN {
		body, next, err := parenBody(toks, i)
		if err != nil {
			return fmt.Errorf("INSERT INTO %s: %w", name, err)
		}
		columns = identList(body)
		i = next
	}

	if i >= len(toks) || !isWord(toks[i], "values") {
		return fmt.Errorf("INSERT INTO %s: expected VALUES", name)
	}
	i++

	for i < len(toks) {
		if toks[i].Type == steps.TOKEN_COMMA {
			i++
			continue
		}
		if toks[i].Type != steps.TOKEN_LPAREN {
			return fmt.Errorf("INSERT INTO %s: expected value tuple", name)
		}
		body, next, err := parenBody(toks, i)
		if err != nil {
			return fmt.Errorf("INSERT INTO %s: %w", name, err)
		}
		values, err := parseValueTuple(body)
		if err != nil {
			return fmt.Errorf("INSERT INTO %s: %w", name, err)
		}
		if len(columns) == 0 {
			return fmt.Errorf("INSERT INTO %s: no column list and no prior CREATE TABLE", name)
		}
		if len(values) != len(columns) {
			return fmt.Errorf("INSERT INTO %s: %d values for %d columns", name, len(values), len(columns))
		}
		row := make(relation.Row, len(columns))
		for j, col := range columns {
			row[col] = values[j]
		}
		t.Rows = append(t.Rows, row)
		i = next
	}
	return nil
}

// parseValueTuple converts one parenthesized literal list into Go values:
// int64, float64, bool, string, or nil.
func parseValueTuple(toks []steps.Token) ([]any, error) {
	var values []any
	for _, item := range splitTop(toks) {
		if len(item) == 0 {
			return nil, fmt.Errorf("empty value in tuple")
		}
		neg := false
		if item[0].Type == steps.TOKEN_MINUS && len(item) > 1 {
			neg = true
			item = item[1:]
		}
		tok := item[0]
		switch tok.Type {
		case steps.TOKEN_NUMBER:
			if n, err := strconv.ParseInt(tok.Literal, 10, 64); err == nil {
				if neg {
					n = -n
				}
				values = append(values, n)
				continue
			}
			f, err := strconv.ParseFloat(tok.Literal, 64)
			if err != nil {
				return nil, fmt.Errorf("bad numeric literal %q", tok.Literal)
			}
			if neg {
				f = -f
			}
			values = append(values, f)
		case steps.TOKEN_STRING:
			values = append(values, tok.Literal)
		case steps.TOKEN_IDENT:
			if tok.Quoted {
				// Double-quoted values in teaching scripts are strings.
				values = append(values, tok.Literal)
			} else {
				return nil, fmt.Errorf("unsupported value %q", tok.Literal)
			}
		case steps.TOKEN_TRUE:
			values = append(values, true)
		case steps.TOKEN_FALSE:
			values = append(values, false)
		case steps.TOKEN_NULL:
			values = append(values, nil)
		default:
			return nil, fmt.Errorf("unsupported value %q", tok.Literal)
		}
	}
	return values, nil
}

// parenBody returns the tokens inside the balanced paren group opening at i,
// and the index just past the closing paren.
func parenBody(toks []steps.Token, i int) ([]steps.Token, int, error) {
	if i >= len(toks) || toks[i].Type != steps.TOKEN_LPAREN {
		return nil, i, fmt.Errorf("expected opening parenthesis")
	}
	depth := 0
	for j := i; j < len(toks); j++ {
		switch toks[j].Type {
		case steps.TOKEN_LPAREN:
			depth++
		case steps.TOKEN_RPAREN:
			depth--
			if depth == 0 {
				return toks[i+1 : j], j + 1, nil
			}
		}
	}
	return nil, i, fmt.Errorf("unbalanced parentheses")
}

// splitTop splits a token run at depth-0 commas.
func splitTop(toks []steps.Token) [][]steps.Token {
	var items [][]steps.Token
	depth, start := 0, 0
	for i, tok := range toks {
		switch tok.Type {
		case steps.TOKEN_LPAREN:
			depth++
		case steps.TOKEN_RPAREN:
			depth--
		case steps.TOKEN_COMMA:
			if depth == 0 {
				items = append(items, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		items = append(items, toks[start:])
	}
	return items
}

// identList extracts identifier literals from a comma-separated token run.
func identList(toks []steps.Token) []string {
	var names []string
	for _, item := range splitTop(toks) {
		if len(item) > 0 && item[0].Type == steps.TOKEN_IDENT {
			names = append(names, item[0].Literal)
		}
	}
	return names
}

// isWord matches an identifier token case-insensitively. DDL keywords like
// TABLE or REFERENCES lex as plain identifiers, so this is how the parser
// recognizes them.
func isWord(tok steps.Token, word string) bool {
	return tok.Type == steps.TOKEN_IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, word)
}

func offsetAt(toks []steps.Token, i int) int {
	if i < len(toks) {
		return toks[i].Pos.Offset
	}
	if len(toks) > 0 {
		return toks[len(toks)-1].Pos.Offset
	}
	return 0
}
