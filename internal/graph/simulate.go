package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Effect is one table touched by a simulated operation.
type Effect struct {
	Table   string   `json:"table"`
	Action  Action   `json:"action"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// SimulationResult predicts what a DELETE or UPDATE against a referenced
// table would do, without touching any data.
type SimulationResult struct {
	Result        string   `json:"result"` // "success" or "failure"
	ErrorType     string   `json:"error_type,omitempty"`
	BlockedBy     []string `json:"blocked_by"`
	Cascades      []Effect `json:"cascade_effects"`
	SetNull       []Effect `json:"set_null_effects"`
	InferredRisks []string `json:"inferred_risks"`
	Explanation   string   `json:"explanation"`
	Details       []string `json:"details"`
}

// SimulateDelete predicts the outcome of deleting rows from a table by
// walking its incoming FK edges. RESTRICT or NO ACTION on any referencing
// table blocks the delete; CASCADE chains recurse into the referencing
// table's own dependents; SET NULL nullifies the referencing columns. Row
// counts are the referencing tables' full sizes, the worst case when every
// row is affected.
func (g *Graph) SimulateDelete(table string) (SimulationResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[table]; !ok {
		return SimulationResult{}, fmt.Errorf("table %q not found in graph", table)
	}

	res := emptyResult()
	visited := map[string]bool{table: true}
	g.walkDelete(table, visited, &res)

	sort.Strings(res.BlockedBy)
	sort.Strings(res.InferredRisks)
	sort.Slice(res.Cascades, func(i, j int) bool { return res.Cascades[i].Table < res.Cascades[j].Table })
	sort.Slice(res.SetNull, func(i, j int) bool { return res.SetNull[i].Table < res.SetNull[j].Table })

	if len(res.BlockedBy) > 0 {
		res.Result = "failure"
		res.ErrorType = "referential_integrity"
		res.Explanation = fmt.Sprintf("DELETE blocked: %s is referenced by %s. Foreign key constraints prevent deletion.",
			table, strings.Join(res.BlockedBy, ", "))
	} else {
		res.Result = "success"
		res.Explanation = "DELETE would succeed."
		if len(res.Cascades) > 0 {
			res.Explanation += fmt.Sprintf(" %d table(s) would be CASCADE deleted.", len(res.Cascades))
		}
		if len(res.SetNull) > 0 {
			res.Explanation += fmt.Sprintf(" %d table(s) would have references set to NULL.", len(res.SetNull))
		}
		if len(res.InferredRisks) > 0 {
			res.Explanation += fmt.Sprintf(" Warning: %d inferred relationship(s) may break: %s",
				len(res.InferredRisks), strings.Join(res.InferredRisks, ", "))
		}
	}
	return res, nil
}

func (g *Graph) walkDelete(table string, visited map[string]bool, res *SimulationResult) {
	for _, e := range g.in[table] {
		if e.Kind == EdgeInferred {
			res.InferredRisks = appendUnique(res.InferredRisks, e.From)
			continue
		}
		res.Details = append(res.Details, fmt.Sprintf("%s.%s references %s.%s (ON DELETE %s)",
			e.From, strings.Join(e.FromColumns, ", "), table, strings.Join(e.ToColumns, ", "), e.OnDelete))

		switch {
		case e.OnDelete.blocks():
			res.BlockedBy = appendUnique(res.BlockedBy, e.From)
		case e.OnDelete == ActionCascade:
			if !visited[e.From] {
				visited[e.From] = true
				res.Cascades = append(res.Cascades, g.effect(e.From, ActionCascade, e.FromColumns))
				// A cascaded delete triggers the referencing table's own
				// incoming constraints.
				g.walkDelete(e.From, visited, res)
			}
		case e.OnDelete == ActionSetNull:
			res.SetNull = append(res.SetNull, g.effect(e.From, ActionSetNull, e.FromColumns))
		}
	}
}

// SimulateUpdate predicts the outcome of updating a column that other
// tables' foreign keys reference. An empty column means a key update, which
// every incoming FK cares about.
func (g *Graph) SimulateUpdate(table, column string) (SimulationResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[table]; !ok {
		return SimulationResult{}, fmt.Errorf("table %q not found in graph", table)
	}

	res := emptyResult()
	for _, e := range g.in[table] {
		if e.Kind == EdgeInferred {
			if column == "" || containsFold(e.ToColumns, column) {
				res.InferredRisks = appendUnique(res.InferredRisks, e.From)
			}
			continue
		}
		if column != "" && !containsFold(e.ToColumns, column) {
			continue
		}
		res.Details = append(res.Details, fmt.Sprintf("%s.%s references %s.%s (ON UPDATE %s)",
			e.From, strings.Join(e.FromColumns, ", "), table, strings.Join(e.ToColumns, ", "), e.OnUpdate))

		switch {
		case e.OnUpdate.blocks():
			res.BlockedBy = appendUnique(res.BlockedBy, e.From)
		case e.OnUpdate == ActionCascade:
			res.Cascades = append(res.Cascades, g.effect(e.From, ActionCascade, e.FromColumns))
		case e.OnUpdate == ActionSetNull:
			res.SetNull = append(res.SetNull, g.effect(e.From, ActionSetNull, e.FromColumns))
		}
	}

	sort.Strings(res.BlockedBy)
	sort.Strings(res.InferredRisks)

	target := table + "." + column
	if column == "" {
		target = table + " key"
	}
	if len(res.BlockedBy) > 0 {
		res.Result = "failure"
		res.ErrorType = "referential_integrity"
		res.Explanation = fmt.Sprintf("UPDATE blocked: %s is referenced by %s. Foreign key constraints prevent update.",
			target, strings.Join(res.BlockedBy, ", "))
	} else {
		res.Result = "success"
		res.Explanation = "UPDATE would succeed."
		if len(res.Cascades) > 0 {
			res.Explanation += fmt.Sprintf(" %d table(s) would be CASCADE updated.", len(res.Cascades))
		}
		if len(res.InferredRisks) > 0 {
			res.Explanation += fmt.Sprintf(" Warning: %d inferred relationship(s) may break: %s",
				len(res.InferredRisks), strings.Join(res.InferredRisks, ", "))
		}
	}
	return res, nil
}

// CriticalityEntry ranks a table by how much depends on it.
type CriticalityEntry struct {
	Table      string `json:"table"`
	Dependents int    `json:"dependents"` // tables that reach it through FK chains
	DirectFKs  int    `json:"direct_fks"`
	Restrict   int    `json:"restrict_count"`
	Cascade    int    `json:"cascade_count"`
	Score      int    `json:"score"` // 0..100
	Level      string `json:"level"` // none, low, medium, high
}

// Criticality ranks every table by delete risk: how many tables reference it
// transitively and how many of those constraints block. Sorted by score
// descending, then name.
func (g *Graph) Criticality() []CriticalityEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := make([]CriticalityEntry, 0, len(g.nodes))
	for _, name := range g.nodeNamesLocked() {
		entry := CriticalityEntry{Table: name}

		for _, e := range g.in[name] {
			if e.Kind != EdgeForeignKey {
				continue
			}
			entry.DirectFKs++
			if e.OnDelete.blocks() {
				entry.Restrict++
			} else if e.OnDelete == ActionCascade {
				entry.Cascade++
			}
		}
		entry.Dependents = len(g.reachableDependents(name))

		entry.Score = entry.Dependents*10 + entry.Restrict*5
		if entry.Score > 100 {
			entry.Score = 100
		}
		switch {
		case entry.Score >= 50:
			entry.Level = "high"
		case entry.Score >= 25:
			entry.Level = "medium"
		case entry.Score > 0:
			entry.Level = "low"
		default:
			entry.Level = "none"
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Table < entries[j].Table
	})
	return entries
}

// reachableDependents returns the tables that reference name directly or
// through FK chains.
func (g *Graph) reachableDependents(name string) map[string]bool {
	seen := make(map[string]bool)
	stack := []string{name}
	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.in[curr] {
			if e.Kind != EdgeForeignKey || seen[e.From] || e.From == name {
				continue
			}
			seen[e.From] = true
			stack = append(stack, e.From)
		}
	}
	return seen
}

func (g *Graph) effect(table string, action Action, columns []string) Effect {
	rows := 0
	if n, ok := g.nodes[table]; ok {
		rows = n.RowCount
	}
	return Effect{Table: table, Action: action, Columns: append([]string(nil), columns...), Rows: rows}
}

func emptyResult() SimulationResult {
	return SimulationResult{
		BlockedBy:     []string{},
		Cascades:      []Effect{},
		SetNull:       []Effect{},
		InferredRisks: []string{},
		Details:       []string{},
	}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
