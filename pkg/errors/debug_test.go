package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23514",
		ConstraintName: "store_items_available_count_check",
		TableName:      "store_items",
		Message:        "new row violates check constraint",
	}
	err := Wrap(CodeDependency, fmt.Errorf("decrement: %w", pgErr), "stock update failed")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if !d.Retryable {
		t.Fatal("expected dependency errors to be retryable")
	}
	if d.PG == nil || d.PG.Code != "23514" || d.PG.Table != "store_items" {
		t.Fatalf("unexpected pg details %+v", d.PG)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["pg_constraint"] != "store_items_available_count_check" {
		t.Fatalf("expected constraint field, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatal("empty pg fields must be omitted")
	}
}

func TestDumpCapturesLibPQDetails(t *testing.T) {
	err := fmt.Errorf("insert outcome: %w", &pq.Error{Code: "23505", Constraint: "fulfillment_outcomes_pkey"})
	d := Dump(err)
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "fulfillment_outcomes_pkey" {
		t.Fatalf("unexpected pg details %+v", d.PG)
	}
	if d.Code != "" {
		t.Fatalf("untyped error should carry no code, got %s", d.Code)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil || d.PG != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
