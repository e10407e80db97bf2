package steps

import (
	"fmt"
	"strings"
)

// StepKind identifies the relational-algebra stage a Step performs.
type StepKind string

// Step kinds, in canonical execution order.
const (
	StepFrom       StepKind = "FROM"
	StepJoin       StepKind = "JOIN"
	StepWhere      StepKind = "WHERE"
	StepGroupBy    StepKind = "GROUP_BY"
	StepHaving     StepKind = "HAVING"
	StepSelect     StepKind = "SELECT"
	StepOrderBy    StepKind = "ORDER_BY"
	StepUnionInput StepKind = "UNION_INPUT"
	StepUnion      StepKind = "UNION"
)

// JoinKind identifies the join variant of a Join step.
type JoinKind string

// Supported join kinds. Inner is the default when no modifier is present.
const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
)

// Side marks which arm of a UNION a step belongs to.
// Empty for steps of a plain (non-UNION) statement.
type Side string

// Union arm sides.
const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// AggFunc is an aggregate function name.
type AggFunc string

// Recognized aggregate functions.
const (
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggCount AggFunc = "count"
)

// aggFuncs maps lowercase identifiers to aggregate functions.
var aggFuncs = map[string]AggFunc{
	"min":   AggMin,
	"max":   AggMax,
	"sum":   AggSum,
	"avg":   AggAvg,
	"count": AggCount,
}

// Aggregate is one aggregate-function invocation with its assigned output
// alias. Aliases are assigned once at compile time and reused verbatim by the
// executor, so a HAVING condition can be rewritten to reference the alias
// column computed during grouping.
type Aggregate struct {
	Func     AggFunc `json:"function"`
	Column   string  `json:"source_column"`
	Alias    string  `json:"output_alias"`
	Distinct bool    `json:"distinct"`
}

// Expr returns the SQL expression for the aggregate, e.g. MIN(frequency) or
// COUNT(DISTINCT pno).
func (a Aggregate) Expr() string {
	fn := strings.ToUpper(string(a.Func))
	if a.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", fn, a.Column)
	}
	return fmt.Sprintf("%s(%s)", fn, a.Column)
}

// TableRef is a table name with its optional declared alias.
type TableRef struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Step is one compiled relational-algebra stage. A single struct with a Kind
// discriminant keeps the wire format flat; only the fields relevant to the
// kind are populated.
type Step struct {
	Number      int      `json:"step_number"`
	Kind        StepKind `json:"step_type"`
	Side        Side     `json:"side,omitempty"`
	Explanation string   `json:"explanation"`

	// From
	Tables []TableRef `json:"tables,omitempty"`

	// Join
	JoinKind   JoinKind `json:"join_kind,omitempty"`
	RightTable string   `json:"right_table,omitempty"`
	RightAlias string   `json:"right_alias,omitempty"`

	// Join, Where, Having: raw condition text as the user wrote it.
	Condition string `json:"condition,omitempty"`

	// Referenced columns (Join/Where/Having), group columns (GroupBy),
	// projection list (Select), or sort columns (OrderBy).
	Columns []string `json:"columns,omitempty"`

	// GroupBy (attached from SELECT list and HAVING), Having.
	Aggregates []Aggregate `json:"aggregates,omitempty"`

	// Select: true for a bare `*` projection (no-op).
	Star bool `json:"star,omitempty"`
	// Select: true when the projection is SELECT DISTINCT.
	Distinct bool `json:"distinct,omitempty"`

	// UnionInput
	Subquery string `json:"subquery,omitempty"`

	// Union
	LeftQuery  string `json:"left_query,omitempty"`
	RightQuery string `json:"right_query,omitempty"`
}

// Pipeline is the compiled form of one query submission: the ordered steps
// plus the table references the statement(s) name.
type Pipeline struct {
	Query string `json:"query"`
	Steps []Step `json:"steps"`
	// Union is true when the pipeline was compiled from a two-arm UNION.
	Union bool `json:"union,omitempty"`
}

// aliasTable assigns aggregate output aliases scoped to one compiled
// statement. The alias is `<func>_<column>` lower-cased, with a numeric
// suffix appended to break collisions; repeated requests for the same
// (function, column, distinct) triple return the previously assigned alias.
type aliasTable struct {
	byKey map[string]string
	used  map[string]bool
}

func newAliasTable() *aliasTable {
	return &aliasTable{
		byKey: make(map[string]string),
		used:  make(map[string]bool),
	}
}

// assign returns the alias for the aggregate, creating it if needed.
func (t *aliasTable) assign(fn AggFunc, column string, distinct bool) string {
	key := fmt.Sprintf("%s|%s|%t", fn, strings.ToLower(column), distinct)
	if alias, ok := t.byKey[key]; ok {
		return alias
	}

	base := fmt.Sprintf("%s_%s", fn, strings.ToLower(column))
	alias := base
	for n := 2; t.used[alias]; n++ {
		alias = fmt.Sprintf("%s_%d", base, n)
	}
	t.byKey[key] = alias
	t.used[alias] = true
	return alias
}
