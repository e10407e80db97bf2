// Package store holds the in-memory tables a session works against.
// Tables arrive from SQL/CSV/JSON uploads or a Postgres import and are read
// by every query execution, so access is guarded for concurrent HTTP
// handlers.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/querylens-io/querylens/pkg/relation"
)

// Store is a concurrency-safe named-relation map. Lookups are
// case-insensitive; the originally loaded spelling is preserved for display.
type Store struct {
	mu     sync.RWMutex
	tables map[string]entry
}

type entry struct {
	name string // original spelling
	rel  relation.Relation
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]entry)}
}

// Put stores the relation under name, replacing any existing table whose
// name matches case-insensitively.
func (s *Store) Put(name string, rel relation.Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[strings.ToLower(name)] = entry{name: name, rel: rel}
}

// Get returns a copy-safe snapshot of the named table. The lookup is
// case-insensitive.
func (s *Store) Get(name string) (relation.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tables[strings.ToLower(name)]
	if !ok {
		return relation.Relation{}, &TableNotFoundError{Table: name, Available: s.namesLocked()}
	}
	return e.rel.Clone(), nil
}

// Name returns the originally loaded spelling of the named table.
func (s *Store) Name(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tables[strings.ToLower(name)]
	return e.name, ok
}

// Has reports whether the named table exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[strings.ToLower(name)]
	return ok
}

// Names returns all table names in their original spelling, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namesLocked()
}

func (s *Store) namesLocked() []string {
	names := make([]string, 0, len(s.tables))
	for _, e := range s.tables {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns every table keyed by its original spelling. Relations are
// cloned, so callers may mutate them freely.
func (s *Store) Snapshot() map[string]relation.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]relation.Relation, len(s.tables))
	for _, e := range s.tables {
		out[e.name] = e.rel.Clone()
	}
	return out
}

// Drop removes the named table. Missing tables are not an error.
func (s *Store) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, strings.ToLower(name))
}

// Clear removes every table.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]entry)
}

// Len returns the number of tables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

// TableNotFoundError is returned when a query references a table that has
// not been loaded. Available lists what the store does hold, so the message
// doubles as a hint.
type TableNotFoundError struct {
	Table     string
	Available []string
}

func (e *TableNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("table %q not found: no tables loaded", e.Table)
	}
	return fmt.Sprintf("table %q not found\nAvailable tables: %v", e.Table, e.Available)
}
