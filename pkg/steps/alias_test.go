package steps

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveColumn(t *testing.T) {
	cols := []string{"cno", "cname", "City", "fsid_2"}

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"cname", "cname", true},
		{"c.cname", "cname", true},     // qualifier stripped
		{"fsid", "fsid_2", true},       // dedup-suffix base match
		{"b.fsid", "fsid_2", true},     // qualified, suffix match
		{"city", "City", true},         // case-insensitive
		{"CNAME", "cname", true},       // case-insensitive
		{"missing", "", false},
		{"x.missing", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveColumn(cols, tt.ref)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveColumn(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveColumnPrefersExact(t *testing.T) {
	// An exact match wins over a base-name match for another column.
	cols := []string{"fsid", "fsid_2"}
	got, ok := ResolveColumn(cols, "fsid")
	if !ok || got != "fsid" {
		t.Errorf("ResolveColumn = %q, %v", got, ok)
	}
}

func TestResolveColumnsDropsUnresolved(t *testing.T) {
	cols := []string{"pno", "pname"}
	resolved, dropped := ResolveColumns(cols, []string{"p.pname", "budget", "pno"})
	if !reflect.DeepEqual(resolved, []string{"pname", "pno"}) {
		t.Errorf("resolved = %v", resolved)
	}
	if !reflect.DeepEqual(dropped, []string{"budget"}) {
		t.Errorf("dropped = %v", dropped)
	}
}

func TestResolveJoinCondition(t *testing.T) {
	left := map[string]bool{"fund_source": true, "fs": true}

	keys, err := ResolveJoinCondition("fs.fsid = b.fsid", left, "budget", "b")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := JoinKeys{LeftQualifier: "fs", LeftColumn: "fsid", RightQualifier: "b", RightColumn: "fsid"}
	if keys != want {
		t.Errorf("keys = %+v, want %+v", keys, want)
	}

	// Reversed equality orients the same way.
	keys, err = ResolveJoinCondition("b.fsid = fs.fsid", left, "budget", "b")
	if err != nil {
		t.Fatalf("resolve reversed: %v", err)
	}
	if keys != want {
		t.Errorf("reversed keys = %+v, want %+v", keys, want)
	}

	// Table name works where the alias would.
	keys, err = ResolveJoinCondition("fund_source.fsid = budget.fsid", left, "budget", "b")
	if err != nil {
		t.Fatalf("resolve by table name: %v", err)
	}
	if keys.RightColumn != "fsid" || keys.LeftQualifier != "fund_source" {
		t.Errorf("keys = %+v", keys)
	}
}

func TestResolveJoinConditionErrors(t *testing.T) {
	left := map[string]bool{"a": true}

	tests := []struct {
		name string
		cond string
	}{
		{"compound", "a.x = b.x AND a.y = b.y"},
		{"unqualified", "x = y"},
		{"unknown qualifier", "q.x = r.x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		_, err := ResolveJoinCondition(tt.cond, left, "b", "")
		var jerr *JoinResolutionError
		if !errors.As(err, &jerr) {
			t.Errorf("%s: err = %v, want JoinResolutionError", tt.name, err)
		}
	}
}

func TestCommonColumns(t *testing.T) {
	got := CommonColumns([]string{"cno", "cname", "city"}, []string{"City", "bno"})
	if !reflect.DeepEqual(got, []string{"city"}) {
		t.Errorf("common = %v", got)
	}

	// Dedup suffixes compare by base name.
	got = CommonColumns([]string{"fsid_2", "amount"}, []string{"fsid"})
	if !reflect.DeepEqual(got, []string{"fsid_2"}) {
		t.Errorf("common = %v", got)
	}

	if got = CommonColumns([]string{"a"}, []string{"b"}); got != nil {
		t.Errorf("common = %v, want none", got)
	}
}
