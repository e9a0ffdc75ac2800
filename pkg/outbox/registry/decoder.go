package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/payloads"
)

// DecodeFunc turns the data field of an envelope into a typed payload.
type DecodeFunc func(data json.RawMessage) (any, error)

type schema struct {
	eventType enums.OutboxEventType
	version   int
}

func (s schema) String() string {
	return fmt.Sprintf("%s@v%d", s.eventType, s.version)
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder.
// Register everything before the registry is shared; lookups are not
// synchronized.
type DecoderRegistry struct {
	decoders map[schema]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[schema]DecodeFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, fn DecodeFunc) {
	r.decoders[schema{eventType: eventType, version: version}] = fn
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	key := schema{eventType: eventType, version: version}
	fn, ok := r.decoders[key]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s", key)
	}
	out, err := fn(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// NewOutcomeDecoders knows the v1 fulfilled and rejected payloads.
func NewOutcomeDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderFulfilled, 1, strict(func(p *payloads.OrderFulfilledEvent) error {
		if p.IdempotencyKey == "" {
			return errors.New("idempotency_key missing")
		}
		return nil
	}))
	reg.Register(enums.EventOrderRejected, 1, strict(func(p *payloads.OrderRejectedEvent) error {
		if p.IdempotencyKey == "" {
			return errors.New("idempotency_key missing")
		}
		if !p.Reason.IsValid() {
			return fmt.Errorf("unknown rejection reason %q", p.Reason)
		}
		return nil
	}))
	return reg
}

func strict[T any](check func(*T) error) DecodeFunc {
	return func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		if err := check(out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
