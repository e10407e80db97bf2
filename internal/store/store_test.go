package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens-io/querylens/pkg/relation"
)

func sample() relation.Relation {
	return relation.Relation{
		Columns: []string{"cno", "cname"},
		Rows: []relation.Row{
			{"cno": int64(1), "cname": "Alma"},
		},
	}
}

func TestPutGetCaseInsensitive(t *testing.T) {
	s := New()
	s.Put("Customer", sample())

	for _, name := range []string{"Customer", "customer", "CUSTOMER"} {
		rel, err := s.Get(name)
		require.NoErrorf(t, err, "Get(%q)", name)
		assert.Equal(t, []string{"cno", "cname"}, rel.Columns)
	}

	// Original spelling preserved.
	orig, ok := s.Name("customer")
	assert.True(t, ok)
	assert.Equal(t, "Customer", orig)
}

func TestGetReturnsClone(t *testing.T) {
	s := New()
	s.Put("customer", sample())

	rel, err := s.Get("customer")
	require.NoError(t, err)
	rel.Rows[0]["cname"] = "mutated"

	again, err := s.Get("customer")
	require.NoError(t, err)
	assert.Equal(t, "Alma", again.Rows[0]["cname"], "stored relation must not see caller mutations")
}

func TestGetMissing(t *testing.T) {
	s := New()
	s.Put("budget", sample())

	_, err := s.Get("customer")
	var nf *TableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "customer", nf.Table)
	assert.Equal(t, []string{"budget"}, nf.Available)
	assert.Contains(t, nf.Error(), "budget")
}

func TestPutReplacesCaseInsensitively(t *testing.T) {
	s := New()
	s.Put("customer", sample())

	replacement := relation.Relation{Columns: []string{"x"}, Rows: []relation.Row{}}
	s.Put("CUSTOMER", replacement)

	assert.Equal(t, 1, s.Len())
	rel, err := s.Get("customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, rel.Columns)
}

func TestNamesSorted(t *testing.T) {
	s := New()
	s.Put("workson", sample())
	s.Put("budget", sample())
	s.Put("customer", sample())

	assert.Equal(t, []string{"budget", "customer", "workson"}, s.Names())
}

func TestDropAndClear(t *testing.T) {
	s := New()
	s.Put("a", sample())
	s.Put("b", sample())

	s.Drop("A")
	assert.False(t, s.Has("a"))
	assert.True(t, s.Has("b"))

	s.Drop("missing") // no-op

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Names())
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.Put("Customer", sample())

	snap := s.Snapshot()
	require.Contains(t, snap, "Customer")
	snap["Customer"].Rows[0]["cname"] = "mutated"

	rel, err := s.Get("customer")
	require.NoError(t, err)
	assert.Equal(t, "Alma", rel.Rows[0]["cname"])
}
