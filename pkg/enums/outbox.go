package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType is the aggregate_type column of outbox_events. A
// fulfilled event hangs off the order it created; a rejection has no order
// and hangs off the request instead.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateFulfillmentRequest OutboxAggregateType = "fulfillment_request"
)

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderFulfilled OutboxEventType = "order_fulfilled"
	EventOrderRejected  OutboxEventType = "order_rejected"
)

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	// broker kept failing until attempts ran out
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// row can never be published as stored
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateFulfillmentRequest}
	eventTypes     = []OutboxEventType{EventOrderFulfilled, EventOrderRejected}
	dlqReasons     = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}
)

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }
func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }
func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(dlqReasons, r) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf(value, aggregateTypes, "aggregate type")
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf(value, eventTypes, "event type")
}

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parseOneOf(value, dlqReasons, "dead-letter reason")
}

func parseOneOf[T ~string](value string, valid []T, kind string) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
