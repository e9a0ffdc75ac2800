package queue

import "testing"

func TestDeliverySettlesOnce(t *testing.T) {
	acks, nacks := 0, 0
	d := NewDelivery(Message{ID: "m1"}, 0, func() { acks++ }, func() { nacks++ })
	if d.Attempt != 1 {
		t.Fatalf("attempt should default to 1, got %d", d.Attempt)
	}
	d.Nack()
	d.Ack()
	d.Nack()
	if acks != 0 || nacks != 1 {
		t.Fatalf("expected a single nack, got acks=%d nacks=%d", acks, nacks)
	}
}

func TestDeliveryNilCallbacks(t *testing.T) {
	d := NewDelivery(Message{ID: "m2"}, 3, nil, nil)
	d.Ack()
	if d.Attempt != 3 {
		t.Fatalf("unexpected attempt %d", d.Attempt)
	}
}
