// Package graph maintains the table-relationship graph: one node per loaded
// table, edges for declared foreign keys and inferred relationships. The
// graph is advisory metadata for visualization and constraint simulation; it
// never constrains query execution.
package graph

import (
	"sort"
	"strings"
	"sync"
)

// EdgeKind distinguishes declared foreign keys from heuristic inferences.
type EdgeKind string

const (
	EdgeForeignKey EdgeKind = "foreign_key"
	EdgeInferred   EdgeKind = "inferred"
)

// Action is a referential action on an FK edge.
type Action string

const (
	ActionRestrict Action = "RESTRICT"
	ActionNoAction Action = "NO ACTION"
	ActionCascade  Action = "CASCADE"
	ActionSetNull  Action = "SET NULL"
)

// normalizeAction maps free-form DDL action text onto a known Action.
// Anything unrecognized behaves like RESTRICT, the SQL default.
func normalizeAction(s string) Action {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionCascade:
		return ActionCascade
	case ActionSetNull:
		return ActionSetNull
	case ActionNoAction:
		return ActionNoAction
	default:
		return ActionRestrict
	}
}

// blocks reports whether the action prevents the referenced operation.
func (a Action) blocks() bool {
	return a == ActionRestrict || a == ActionNoAction
}

// Node is one table in the graph.
type Node struct {
	Name     string   `json:"id"`
	Source   string   `json:"source"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// Edge is one directed relationship: From references To.
type Edge struct {
	From        string             `json:"source"`
	To          string             `json:"target"`
	Kind        EdgeKind           `json:"kind"`
	FromColumns []string           `json:"from_columns"`
	ToColumns   []string           `json:"to_columns"`
	Confidence  float64            `json:"confidence"`
	OnDelete    Action             `json:"on_delete,omitempty"`
	OnUpdate    Action             `json:"on_update,omitempty"`
	Stats       map[string]float64 `json:"stats,omitempty"`
}

// equal ignores Stats; two edges are the same relationship when they connect
// the same columns the same way.
func (e *Edge) equal(o *Edge) bool {
	if e.From != o.From || e.To != o.To || e.Kind != o.Kind {
		return false
	}
	return strings.Join(e.FromColumns, ",") == strings.Join(o.FromColumns, ",") &&
		strings.Join(e.ToColumns, ",") == strings.Join(o.ToColumns, ",")
}

// Graph holds tables and their relationships. Safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	out   map[string][]*Edge // From -> edges leaving it
	in    map[string][]*Edge // To -> edges arriving at it
}

func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// AddTable registers or updates a table node. Re-adding a known table
// refreshes its column list and row count but keeps existing edges.
func (g *Graph) AddTable(name, source string, columns []string, rowCount int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(name, source, columns, rowCount)
}

func (g *Graph) addNodeLocked(name, source string, columns []string, rowCount int) *Node {
	if n, ok := g.nodes[name]; ok {
		if columns != nil {
			n.Columns = append([]string(nil), columns...)
		}
		if rowCount >= 0 {
			n.RowCount = rowCount
		}
		if source != "" {
			n.Source = source
		}
		return n
	}
	n := &Node{Name: name, Source: source, Columns: append([]string(nil), columns...), RowCount: rowCount}
	if n.RowCount < 0 {
		n.RowCount = 0
	}
	g.nodes[name] = n
	return n
}

// AddForeignKey records a declared FK edge from one table's columns to
// another's. Unknown endpoint tables get placeholder nodes so DDL can declare
// edges in any order. Duplicate declarations are ignored.
func (g *Graph) AddForeignKey(from, to string, fromColumns, toColumns []string, onDelete, onUpdate string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		g.addNodeLocked(from, "sql", nil, 0)
	}
	if _, ok := g.nodes[to]; !ok {
		g.addNodeLocked(to, "sql", nil, 0)
	}

	e := &Edge{
		From:        from,
		To:          to,
		Kind:        EdgeForeignKey,
		FromColumns: append([]string(nil), fromColumns...),
		ToColumns:   append([]string(nil), toColumns...),
		Confidence:  1.0,
		OnDelete:    normalizeAction(onDelete),
		OnUpdate:    normalizeAction(onUpdate),
	}
	g.addEdgeLocked(e)
}

// AddInferred records a heuristic edge with its confidence and the stats
// that produced it. A matching FK or inferred edge already in place wins.
func (g *Graph) AddInferred(from, to, fromColumn, toColumn string, confidence float64, stats map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		g.addNodeLocked(from, "inferred", nil, 0)
	}
	if _, ok := g.nodes[to]; !ok {
		g.addNodeLocked(to, "inferred", nil, 0)
	}

	e := &Edge{
		From:        from,
		To:          to,
		Kind:        EdgeInferred,
		FromColumns: []string{fromColumn},
		ToColumns:   []string{toColumn},
		Confidence:  confidence,
		Stats:       stats,
	}
	// An FK edge over the same columns makes the inference redundant.
	for _, existing := range g.out[from] {
		if existing.To == to &&
			strings.Join(existing.FromColumns, ",") == fromColumn &&
			strings.Join(existing.ToColumns, ",") == toColumn {
			return
		}
	}
	g.addEdgeLocked(e)
}

func (g *Graph) addEdgeLocked(e *Edge) {
	for _, existing := range g.out[e.From] {
		if existing.equal(e) {
			return
		}
	}
	g.out[e.From] = append(g.out[e.From], e)
	g.in[e.To] = append(g.in[e.To], e)
}

// Clear drops every node and edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*Node)
	g.out = make(map[string][]*Edge)
	g.in = make(map[string][]*Edge)
}

// NodeCount returns the number of tables.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, edges := range g.out {
		count += len(edges)
	}
	return count
}

// Snapshot is the serializable graph shape.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`
}

// Snapshot returns the whole graph in stable sorted order, keeping only
// edges at or above minConfidence. Declared FKs always carry confidence 1.
func (g *Graph) Snapshot(minConfidence float64) Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked(g.nodeNamesLocked(), minConfidence)
}

func (g *Graph) nodeNamesLocked() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) snapshotLocked(names []string, minConfidence float64) Snapshot {
	include := make(map[string]bool, len(names))
	for _, name := range names {
		include[name] = true
	}

	snap := Snapshot{Nodes: []Node{}, Links: []Edge{}}
	sort.Strings(names)
	for _, name := range names {
		n, ok := g.nodes[name]
		if !ok {
			continue
		}
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, name := range names {
		for _, e := range g.out[name] {
			if !include[e.To] || e.Confidence < minConfidence {
				continue
			}
			snap.Links = append(snap.Links, *e)
		}
	}
	sort.Slice(snap.Links, func(i, j int) bool {
		a, b := snap.Links[i], snap.Links[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return strings.Join(a.FromColumns, ",") < strings.Join(b.FromColumns, ",")
	})
	return snap
}

// TableDetails is one node plus its edges in both directions.
type TableDetails struct {
	Node     Node   `json:"table"`
	Outgoing []Edge `json:"outgoing_edges"`
	Incoming []Edge `json:"incoming_edges"`
}

// Table returns details for one table, or false when it is not in the graph.
func (g *Graph) Table(name string) (TableDetails, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return TableDetails{}, false
	}
	d := TableDetails{Node: *n, Outgoing: []Edge{}, Incoming: []Edge{}}
	for _, e := range g.out[name] {
		d.Outgoing = append(d.Outgoing, *e)
	}
	for _, e := range g.in[name] {
		d.Incoming = append(d.Incoming, *e)
	}
	sortEdges(d.Outgoing)
	sortEdges(d.Incoming)
	return d, true
}

// EdgesBetween returns every edge from one table to another, in insertion
// order. Nil when no such edges exist.
func (g *Graph) EdgesBetween(from, to string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Edge
	for _, e := range g.out[from] {
		if e.To == to {
			out = append(out, *e)
		}
	}
	return out
}

// Subgraph returns the nodes within depth undirected hops of the roots,
// plus every edge among them. Unknown roots are ignored.
func (g *Graph) Subgraph(roots []string, depth int) Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	frontier := make([]string, 0, len(roots))
	for _, root := range roots {
		if _, ok := g.nodes[root]; ok && !seen[root] {
			seen[root] = true
			frontier = append(frontier, root)
		}
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			for _, e := range g.out[name] {
				if !seen[e.To] {
					seen[e.To] = true
					next = append(next, e.To)
				}
			}
			for _, e := range g.in[name] {
				if !seen[e.From] {
					seen[e.From] = true
					next = append(next, e.From)
				}
			}
		}
		frontier = next
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return g.snapshotLocked(names, 0)
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return strings.Join(a.FromColumns, ",") < strings.Join(b.FromColumns, ",")
	})
}
