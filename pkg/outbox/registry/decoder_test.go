package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderRejected, 1, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"reason":"not_stocked"}`)
	output, err := reg.Decode(enums.EventOrderRejected, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["reason"] != "not_stocked" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventOrderRejected, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}

func TestOutcomeDecoders(t *testing.T) {
	reg := NewOutcomeDecoders()

	out, err := reg.Decode(enums.EventOrderFulfilled, 1, json.RawMessage(`{"idempotency_key":"k1","bill_amount":"8.00","line_count":3}`))
	if err != nil {
		t.Fatalf("decode fulfilled: %v", err)
	}
	fulfilled, ok := out.(*payloads.OrderFulfilledEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if fulfilled.IdempotencyKey != "k1" || fulfilled.BillAmount != "8.00" || fulfilled.LineCount != 3 {
		t.Fatalf("unexpected payload %+v", fulfilled)
	}

	out, err = reg.Decode(enums.EventOrderRejected, 1, json.RawMessage(`{"idempotency_key":"k2","reason":"insufficient_stock"}`))
	if err != nil {
		t.Fatalf("decode rejected: %v", err)
	}
	rejected, ok := out.(*payloads.OrderRejectedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if rejected.Reason != enums.RejectionInsufficientStock {
		t.Fatalf("unexpected reason %s", rejected.Reason)
	}
}

func TestOutcomeDecodersRejectIncompletePayloads(t *testing.T) {
	reg := NewOutcomeDecoders()

	cases := map[enums.OutboxEventType]string{
		enums.EventOrderFulfilled: `{"bill_amount":"8.00"}`,
		enums.EventOrderRejected:  `{"idempotency_key":"k3","reason":"sold_out"}`,
	}
	for eventType, data := range cases {
		if _, err := reg.Decode(eventType, 1, json.RawMessage(data)); err == nil {
			t.Fatalf("expected %s payload %s to be rejected", eventType, data)
		}
	}
	if _, err := reg.Decode(enums.EventOrderRejected, 1, json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected malformed json to fail")
	}
}
