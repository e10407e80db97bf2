package graph

import (
	"strings"
	"testing"
)

func TestSimulateDelete_Blocked(t *testing.T) {
	g := fixtureGraph()

	res, err := g.SimulateDelete("users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "failure" || res.ErrorType != "referential_integrity" {
		t.Errorf("expected referential integrity failure, got %+v", res)
	}
	if len(res.BlockedBy) != 1 || res.BlockedBy[0] != "orders" {
		t.Errorf("expected orders to block, got %v", res.BlockedBy)
	}
	if !strings.Contains(res.Explanation, "referenced by orders") {
		t.Errorf("unexpected explanation: %s", res.Explanation)
	}
	if len(res.Details) == 0 || !strings.Contains(res.Details[0], "orders.user_id references users.id") {
		t.Errorf("unexpected details: %v", res.Details)
	}
}

func TestSimulateDelete_CascadeChain(t *testing.T) {
	g := New()
	g.AddTable("users", "sql", []string{"id"}, 4)
	g.AddTable("orders", "sql", []string{"id", "user_id"}, 10)
	g.AddTable("order_items", "sql", []string{"id", "order_id"}, 25)
	g.AddForeignKey("orders", "users", []string{"user_id"}, []string{"id"}, "CASCADE", "")
	g.AddForeignKey("order_items", "orders", []string{"order_id"}, []string{"id"}, "CASCADE", "")

	res, err := g.SimulateDelete("users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "success" {
		t.Fatalf("expected success, got %+v", res)
	}
	// The cascade on orders triggers the cascade on order_items.
	if len(res.Cascades) != 2 {
		t.Fatalf("expected cascade chain of 2, got %v", res.Cascades)
	}
	if res.Cascades[0].Table != "order_items" || res.Cascades[0].Rows != 25 {
		t.Errorf("unexpected cascade effect: %+v", res.Cascades[0])
	}
	if res.Cascades[1].Table != "orders" || res.Cascades[1].Rows != 10 {
		t.Errorf("unexpected cascade effect: %+v", res.Cascades[1])
	}
}

func TestSimulateDelete_CascadeIntoRestrict(t *testing.T) {
	g := New()
	g.AddTable("users", "sql", []string{"id"}, 4)
	g.AddTable("orders", "sql", []string{"id", "user_id"}, 10)
	g.AddTable("invoices", "sql", []string{"id", "order_id"}, 3)
	g.AddForeignKey("orders", "users", []string{"user_id"}, []string{"id"}, "CASCADE", "")
	g.AddForeignKey("invoices", "orders", []string{"order_id"}, []string{"id"}, "NO ACTION", "")

	res, err := g.SimulateDelete("users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "failure" {
		t.Fatalf("a restricting FK behind a cascade should block, got %+v", res)
	}
	if len(res.BlockedBy) != 1 || res.BlockedBy[0] != "invoices" {
		t.Errorf("expected invoices to block, got %v", res.BlockedBy)
	}
}

func TestSimulateDelete_SetNullAndInferred(t *testing.T) {
	g := New()
	g.AddTable("users", "sql", []string{"id"}, 4)
	g.AddTable("sessions", "sql", []string{"id", "user_id"}, 7)
	g.AddForeignKey("sessions", "users", []string{"user_id"}, []string{"id"}, "SET NULL", "")
	g.AddInferred("events", "users", "uid", "id", 0.6, nil)

	res, err := g.SimulateDelete("users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "success" {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.SetNull) != 1 || res.SetNull[0].Table != "sessions" || res.SetNull[0].Rows != 7 {
		t.Errorf("unexpected set-null effects: %v", res.SetNull)
	}
	if len(res.InferredRisks) != 1 || res.InferredRisks[0] != "events" {
		t.Errorf("unexpected inferred risks: %v", res.InferredRisks)
	}
	if !strings.Contains(res.Explanation, "inferred relationship") {
		t.Errorf("explanation should mention inferred risk: %s", res.Explanation)
	}
}

func TestSimulateDelete_UnknownTable(t *testing.T) {
	g := New()
	if _, err := g.SimulateDelete("ghost"); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestSimulateDelete_SelfReference(t *testing.T) {
	g := New()
	g.AddTable("employee", "sql", []string{"ssn", "super_ssn"}, 8)
	g.AddForeignKey("employee", "employee", []string{"super_ssn"}, []string{"ssn"}, "CASCADE", "")

	res, err := g.SimulateDelete("employee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "success" {
		t.Errorf("self-referencing cascade should not loop or block: %+v", res)
	}
	if len(res.Cascades) != 0 {
		t.Errorf("self cascade should not re-list the table, got %v", res.Cascades)
	}
}

func TestSimulateUpdate_ColumnScoped(t *testing.T) {
	g := fixtureGraph()

	// users.id is referenced; orders declares ON UPDATE CASCADE.
	res, err := g.SimulateUpdate("users", "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "success" {
		t.Fatalf("cascading update should succeed, got %+v", res)
	}
	if len(res.Cascades) != 1 || res.Cascades[0].Table != "orders" {
		t.Errorf("unexpected cascades: %v", res.Cascades)
	}

	// users.name is not referenced by anything.
	res, err = g.SimulateUpdate("users", "name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "success" || len(res.Cascades) != 0 || len(res.BlockedBy) != 0 {
		t.Errorf("unreferenced column update should be a no-op, got %+v", res)
	}
}

func TestSimulateUpdate_Blocked(t *testing.T) {
	g := fixtureGraph()

	// orders.id is referenced by order_items with default ON UPDATE RESTRICT.
	res, err := g.SimulateUpdate("orders", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "failure" {
		t.Fatalf("expected blocked update, got %+v", res)
	}
	if len(res.BlockedBy) != 1 || res.BlockedBy[0] != "order_items" {
		t.Errorf("expected order_items to block, got %v", res.BlockedBy)
	}
}

func TestCriticality(t *testing.T) {
	g := fixtureGraph()

	entries := g.Criticality()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// users is referenced transitively by orders and order_items.
	if entries[0].Table != "users" {
		t.Fatalf("expected users to rank first, got %s", entries[0].Table)
	}
	if entries[0].Dependents != 2 || entries[0].Restrict != 1 {
		t.Errorf("unexpected users entry: %+v", entries[0])
	}
	if entries[0].Score != 25 || entries[0].Level != "medium" {
		t.Errorf("unexpected users score: %+v", entries[0])
	}

	last := entries[len(entries)-1]
	if last.Table != "order_items" || last.Level != "none" || last.Score != 0 {
		t.Errorf("unexpected leaf entry: %+v", last)
	}
}
