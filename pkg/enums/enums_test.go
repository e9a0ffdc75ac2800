package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("order_fulfilled")
	if err != nil || got != EventOrderFulfilled {
		t.Fatalf("expected order_fulfilled, got %q (%v)", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
}

func TestRejectionReasonItemUnavailable(t *testing.T) {
	for _, reason := range validRejectionReasons {
		want := reason == RejectionNotStocked || reason == RejectionInsufficientStock
		if reason.IsItemUnavailable() != want {
			t.Fatalf("unexpected IsItemUnavailable for %s", reason)
		}
	}
	if RejectionReason("bogus").IsValid() {
		t.Fatal("bogus reason must be invalid")
	}
}

func TestFulfillmentStatusTerminal(t *testing.T) {
	if !FulfillmentStatusFulfilled.IsTerminal() || !FulfillmentStatusRejected.IsTerminal() {
		t.Fatal("fulfilled and rejected are terminal")
	}
	if FulfillmentStatusFailed.IsTerminal() || FulfillmentStatusPending.IsTerminal() {
		t.Fatal("failed and pending are not persisted outcomes")
	}
}

func TestParseItemCategory(t *testing.T) {
	if c, err := ParseItemCategory("Main Course"); err != nil || c != ItemCategoryMainCourse {
		t.Fatalf("unexpected parse result %q %v", c, err)
	}
	if _, err := ParseItemCategory("Snack"); err == nil {
		t.Fatal("expected invalid category")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	got, err := ParseOutboxDLQErrorReason("non_retryable")
	if err != nil || got != OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non_retryable, got %q (%v)", got, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
}
