package steps

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func kinds(steps []Step) []StepKind {
	out := make([]StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestCompileCanonicalOrder(t *testing.T) {
	query := `SELECT c.cname, min(frequency)
FROM customer c JOIN orders o ON c.cno = o.cno
WHERE c.city LIKE "%bank%"
GROUP BY c.cname
HAVING min(frequency) > 2
ORDER BY c.cname DESC`

	p, err := Compile(query)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := []StepKind{StepFrom, StepJoin, StepWhere, StepGroupBy, StepHaving, StepSelect, StepOrderBy}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}
	for i, s := range p.Steps {
		if s.Number != i+1 {
			t.Errorf("step %d numbered %d", i, s.Number)
		}
		if s.Side != SideNone {
			t.Errorf("step %d side = %q, want none", i, s.Side)
		}
	}
}

func TestCompileAbsentClausesProduceNoStep(t *testing.T) {
	p, err := Compile("SELECT * FROM customer")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []StepKind{StepFrom, StepSelect}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}
	sel := p.Steps[1]
	if !sel.Star || len(sel.Columns) != 0 {
		t.Errorf("star projection: Star=%v Columns=%v", sel.Star, sel.Columns)
	}
}

func TestCompileIdempotent(t *testing.T) {
	query := `SELECT pno, sum(hours) FROM workson GROUP BY pno HAVING sum(hours) > 20`
	a, err := Compile(query)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := Compile(query)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("repeated compilation produced different pipelines")
	}
}

func TestCompileFromAliases(t *testing.T) {
	p, err := Compile("SELECT * FROM customer AS c, orders o")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []TableRef{{Name: "customer", Alias: "c"}, {Name: "orders", Alias: "o"}}
	if got := p.Steps[0].Tables; !reflect.DeepEqual(got, want) {
		t.Errorf("tables = %+v, want %+v", got, want)
	}
}

func TestCompileJoinKinds(t *testing.T) {
	tests := []struct {
		query string
		want  JoinKind
	}{
		{"SELECT * FROM a JOIN b ON a.x = b.x", JoinInner},
		{"SELECT * FROM a INNER JOIN b ON a.x = b.x", JoinInner},
		{"SELECT * FROM a LEFT JOIN b ON a.x = b.x", JoinLeft},
		{"SELECT * FROM a LEFT OUTER JOIN b ON a.x = b.x", JoinLeft},
		{"SELECT * FROM a RIGHT JOIN b ON a.x = b.x", JoinRight},
		{"SELECT * FROM a FULL OUTER JOIN b ON a.x = b.x", JoinFull},
	}
	for _, tt := range tests {
		p, err := Compile(tt.query)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.query, err)
		}
		join := p.Steps[1]
		if join.Kind != StepJoin || join.JoinKind != tt.want {
			t.Errorf("%q: join kind = %s, want %s", tt.query, join.JoinKind, tt.want)
		}
		if join.RightTable != "b" {
			t.Errorf("%q: right table = %q", tt.query, join.RightTable)
		}
	}
}

func TestCompileJoinConditionAndColumns(t *testing.T) {
	p, err := Compile("SELECT * FROM fund_source fs LEFT JOIN budget b ON fs.fsid = b.fsid")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	join := p.Steps[1]
	if join.Condition != "fs.fsid = b.fsid" {
		t.Errorf("condition = %q", join.Condition)
	}
	if join.RightAlias != "b" {
		t.Errorf("right alias = %q", join.RightAlias)
	}
	want := []string{"fs.fsid", "b.fsid"}
	if !reflect.DeepEqual(join.Columns, want) {
		t.Errorf("columns = %v, want %v", join.Columns, want)
	}
}

func TestCompileChainedJoinsKeepSourceOrder(t *testing.T) {
	p, err := Compile(`SELECT * FROM maintenance m
		LEFT JOIN maintenance_types mt ON m.mtid = mt.mtid
		LEFT JOIN premise p ON m.pid = p.pid`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []StepKind{StepFrom, StepJoin, StepJoin, StepSelect}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}
	if p.Steps[1].RightTable != "maintenance_types" || p.Steps[2].RightTable != "premise" {
		t.Errorf("join targets = %q, %q", p.Steps[1].RightTable, p.Steps[2].RightTable)
	}
}

func TestCompileWhereColumns(t *testing.T) {
	p, err := Compile(`SELECT * FROM maintenance WHERE start_hour + duration > 17 AND city = 'Oslo'`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	where := p.Steps[1]
	if where.Kind != StepWhere {
		t.Fatalf("second step = %s", where.Kind)
	}
	want := []string{"start_hour", "duration", "city"}
	if !reflect.DeepEqual(where.Columns, want) {
		t.Errorf("columns = %v, want %v", where.Columns, want)
	}
}

func TestCompileHavingAggregatesAttachToGroupBy(t *testing.T) {
	p, err := Compile(`SELECT mtid, min(frequency) FROM maintenance_types
		GROUP BY mtid HAVING min(frequency) > 2 AND max(frequency) < 100`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var group, having *Step
	for i := range p.Steps {
		switch p.Steps[i].Kind {
		case StepGroupBy:
			group = &p.Steps[i]
		case StepHaving:
			having = &p.Steps[i]
		}
	}
	if group == nil || having == nil {
		t.Fatalf("missing group/having in %v", kinds(p.Steps))
	}

	wantAliases := []string{"min_frequency", "max_frequency"}
	got := make([]string, len(group.Aggregates))
	for i, a := range group.Aggregates {
		got[i] = a.Alias
	}
	if !reflect.DeepEqual(got, wantAliases) {
		t.Errorf("group aggregates = %v, want %v", got, wantAliases)
	}
	// The SELECT list references the shared alias.
	var sel *Step
	for i := range p.Steps {
		if p.Steps[i].Kind == StepSelect {
			sel = &p.Steps[i]
		}
	}
	if !reflect.DeepEqual(sel.Columns, []string{"mtid", "min_frequency"}) {
		t.Errorf("select columns = %v", sel.Columns)
	}
}

func TestCompileCountDistinct(t *testing.T) {
	p, err := Compile(`SELECT pno, count(distinct essn) FROM workson GROUP BY pno HAVING count(distinct essn) > 1`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var group *Step
	for i := range p.Steps {
		if p.Steps[i].Kind == StepGroupBy {
			group = &p.Steps[i]
		}
	}
	if len(group.Aggregates) != 1 {
		t.Fatalf("aggregates = %+v", group.Aggregates)
	}
	agg := group.Aggregates[0]
	if agg.Func != AggCount || !agg.Distinct || agg.Alias != "count_essn" {
		t.Errorf("aggregate = %+v", agg)
	}
	if agg.Expr() != "COUNT(DISTINCT essn)" {
		t.Errorf("expr = %q", agg.Expr())
	}
}

func TestCompileHavingWithoutGroupBy(t *testing.T) {
	_, err := Compile("SELECT cno FROM orders HAVING count(ono) > 2")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestCompileUnion(t *testing.T) {
	p, err := Compile(`SELECT cname FROM customer WHERE city = 'Oslo'
UNION
SELECT bname FROM budget`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !p.Union {
		t.Fatal("pipeline not marked as union")
	}

	want := []StepKind{StepUnionInput, StepFrom, StepWhere, StepSelect, StepUnionInput, StepFrom, StepSelect, StepUnion}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}

	for _, s := range p.Steps[1:4] {
		if s.Side != SideLeft {
			t.Errorf("left-arm step %s side = %q", s.Kind, s.Side)
		}
	}
	for _, s := range p.Steps[5:7] {
		if s.Side != SideRight {
			t.Errorf("right-arm step %s side = %q", s.Kind, s.Side)
		}
	}
	last := p.Steps[len(p.Steps)-1]
	if !strings.HasPrefix(last.LeftQuery, "SELECT cname") || !strings.HasPrefix(last.RightQuery, "SELECT bname") {
		t.Errorf("union arms = %q / %q", last.LeftQuery, last.RightQuery)
	}
}

func TestCompileUnionErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"union all", "SELECT a FROM t UNION ALL SELECT a FROM u"},
		{"three arms", "SELECT a FROM t UNION SELECT a FROM u UNION SELECT a FROM v"},
		{"right arm not select", "SELECT a FROM t UNION TABLE u"},
	}
	for _, tt := range tests {
		_, err := Compile(tt.query)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%s: err = %v, want ParseError", tt.name, err)
		}
	}
}

func TestCompileSubqueryKeywordsIgnored(t *testing.T) {
	// Clause keywords inside a parenthesized subquery must not register as
	// boundaries of the outer statement.
	p, err := Compile(`SELECT pname FROM project WHERE pno IN (SELECT pno FROM workson WHERE hours > 10)`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []StepKind{StepFrom, StepWhere, StepSelect}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}
	where := p.Steps[1]
	if !strings.Contains(where.Condition, "IN (SELECT pno FROM workson") {
		t.Errorf("condition lost subquery: %q", where.Condition)
	}
}

func TestCompileParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", "   "},
		{"not select", "DELETE FROM customer"},
		{"no from", "SELECT 1"},
		{"unbalanced open", "SELECT * FROM t WHERE x IN (1, 2"},
		{"unbalanced close", "SELECT * FROM t WHERE x IN 1, 2)"},
	}
	for _, tt := range tests {
		_, err := Compile(tt.query)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%s: err = %v, want ParseError", tt.name, err)
		}
	}
}

func TestCompileViewPrefixStripped(t *testing.T) {
	p, err := Compile("CREATE OR REPLACE VIEW busy AS SELECT pno FROM workson WHERE hours > 20")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(p.Query, "SELECT pno") {
		t.Errorf("query = %q, view prefix kept", p.Query)
	}
}

func TestCompileLastStatement(t *testing.T) {
	p, err := Compile("SELECT a FROM t; SELECT cname FROM customer;")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Query != "SELECT cname FROM customer" {
		t.Errorf("query = %q", p.Query)
	}
}

func TestCompileSelectDistinct(t *testing.T) {
	p, err := Compile("SELECT DISTINCT city FROM customer")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sel := p.Steps[len(p.Steps)-1]
	if !sel.Distinct {
		t.Error("distinct flag not set")
	}
	if !reflect.DeepEqual(sel.Columns, []string{"city"}) {
		t.Errorf("columns = %v", sel.Columns)
	}
}

func TestCompileLeftAsIdentifier(t *testing.T) {
	// LEFT used as a column name must not open a join clause.
	p, err := Compile("SELECT left FROM margins WHERE left > 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []StepKind{StepFrom, StepWhere, StepSelect}
	if got := kinds(p.Steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step order = %v, want %v", got, want)
	}
}

func TestAliasTableCollisions(t *testing.T) {
	at := newAliasTable()
	if got := at.assign(AggMin, "Frequency", false); got != "min_frequency" {
		t.Errorf("first = %q", got)
	}
	// Same triple returns the same alias.
	if got := at.assign(AggMin, "frequency", false); got != "min_frequency" {
		t.Errorf("repeat = %q", got)
	}
	// DISTINCT variant is a different triple, alias collides.
	if got := at.assign(AggMin, "frequency", true); got != "min_frequency_2" {
		t.Errorf("distinct = %q", got)
	}
	if got := at.assign(AggMin, "frequency_2", false); got != "min_frequency_2_2" {
		t.Errorf("nested = %q", got)
	}
}
