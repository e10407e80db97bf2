package relation

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDedupColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no duplicates", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"one duplicate", []string{"id", "name", "id"}, []string{"id", "name", "id_2"}},
		{"triple", []string{"x", "x", "x"}, []string{"x", "x_2", "x_3"}},
		{"suffix collision", []string{"x", "x_2", "x"}, []string{"x", "x_2", "x_3"}},
		{"empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		got := DedupColumns(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: DedupColumns(%v) mismatch (-want +got):\n%s", tt.name, tt.in, diff)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"frequency", "frequency"},
		{"frequency_2", "frequency"},
		{"pno_10", "pno"},
		{"start_hour", "start_hour"}, // suffix is not numeric
		{"x_", "x_"},
		{"_2", "_2"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProject(t *testing.T) {
	r := New([]string{"a", "b", "c"}, []Row{
		{"a": int64(1), "b": "x", "c": true},
		{"a": int64(2), "b": "y", "c": false},
	})

	p := r.Project([]string{"c", "a", "missing"})

	if diff := cmp.Diff([]string{"c", "a"}, p.Columns); diff != "" {
		t.Fatalf("Project columns mismatch (-want +got):\n%s", diff)
	}
	if len(p.Rows) != 2 {
		t.Fatalf("Project rows = %d, want 2", len(p.Rows))
	}
	if p.Rows[0]["c"] != true || p.Rows[0]["a"] != int64(1) {
		t.Errorf("Project row 0 = %v", p.Rows[0])
	}
	if _, ok := p.Rows[0]["b"]; ok {
		t.Error("Project should drop column b")
	}

	// Original must be untouched.
	if len(r.Columns) != 3 {
		t.Errorf("source relation mutated: %v", r.Columns)
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := New([]string{"a"}, []Row{{"a": int64(1)}})
	c := r.Clone()
	c.Rows[0]["a"] = int64(99)
	c.Columns[0] = "zzz"

	if r.Rows[0]["a"] != int64(1) {
		t.Error("Clone shares row storage with source")
	}
	if r.Columns[0] != "a" {
		t.Error("Clone shares column storage with source")
	}
}

func TestHead(t *testing.T) {
	r := New([]string{"a"}, []Row{{"a": int64(1)}, {"a": int64(2)}, {"a": int64(3)}})

	if got := r.Head(2).RowCount(); got != 2 {
		t.Errorf("Head(2) rows = %d, want 2", got)
	}
	if got := r.Head(10).RowCount(); got != 3 {
		t.Errorf("Head(10) rows = %d, want 3", got)
	}
	if got := r.Head(-1).RowCount(); got != 3 {
		t.Errorf("Head(-1) rows = %d, want 3", got)
	}
	if got := r.Head(0).RowCount(); got != 0 {
		t.Errorf("Head(0) rows = %d, want 0", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nan", math.NaN(), nil},
		{"pos inf", math.Inf(1), nil},
		{"neg inf", math.Inf(-1), nil},
		{"finite float", 3.5, 3.5},
		{"int64 passthrough", int64(7), int64(7)},
		{"string passthrough", "ok", "ok"},
		{"nil passthrough", nil, nil},
		{"nested slice", []any{1.0, math.NaN()}, []any{1.0, nil}},
		{"nested map", map[string]any{"v": math.Inf(1)}, map[string]any{"v": nil}},
	}

	for _, tt := range tests {
		got := Sanitize(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: Sanitize(%v) mismatch (-want +got):\n%s", tt.name, tt.in, diff)
		}
	}
}

func TestSanitizedRelation(t *testing.T) {
	r := New([]string{"a", "b"}, []Row{
		{"a": math.NaN(), "b": "keep"},
		{"a": 1.25, "b": math.Inf(-1)},
	})

	s := r.Sanitized()

	if s.Rows[0]["a"] != nil {
		t.Errorf("NaN not nilled: %v", s.Rows[0]["a"])
	}
	if s.Rows[0]["b"] != "keep" {
		t.Errorf("string value changed: %v", s.Rows[0]["b"])
	}
	if s.Rows[1]["a"] != 1.25 {
		t.Errorf("finite float changed: %v", s.Rows[1]["a"])
	}
	if s.Rows[1]["b"] != nil {
		t.Errorf("-Inf not nilled: %v", s.Rows[1]["b"])
	}

	// Source keeps its NaN.
	if !math.IsNaN(r.Rows[0]["a"].(float64)) {
		t.Error("Sanitized mutated its receiver")
	}
}
