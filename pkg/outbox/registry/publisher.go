package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/outbox"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to a topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation, ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
	// Attributes become broker message attributes. Subscribers filter on
	// customer_id and store_id without decoding the body.
	Attributes map[string]string
}

// EventRegistry validates outbox rows before the publisher ships them.
type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes both outcome events to the outcomes topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OutcomesTopic == "" {
		return nil, errors.New("outcomes topic is required")
	}
	reg := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor),
		decoders: NewOutcomeDecoders(),
	}
	for _, desc := range []EventDescriptor{
		{EventType: enums.EventOrderFulfilled, AggregateType: enums.AggregateOrder, Topic: cfg.OutcomesTopic},
		{EventType: enums.EventOrderRejected, AggregateType: enums.AggregateFulfillmentRequest, Topic: cfg.OutcomesTopic},
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload
// with the decoder registered for the envelope's version.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
		Attributes: attributes(event, envelope, payload),
	}, nil
}

func attributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope, payload any) map[string]string {
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"event_version":  strconv.Itoa(envelope.Version),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	switch p := payload.(type) {
	case *payloads.OrderFulfilledEvent:
		attrs["idempotency_key"] = p.IdempotencyKey
		attrs["customer_id"] = p.CustomerID.String()
		attrs["store_id"] = p.StoreID.String()
	case *payloads.OrderRejectedEvent:
		attrs["idempotency_key"] = p.IdempotencyKey
		attrs["customer_id"] = p.CustomerID.String()
		attrs["store_id"] = p.StoreID.String()
		attrs["reason"] = string(p.Reason)
	}
	return attrs
}
