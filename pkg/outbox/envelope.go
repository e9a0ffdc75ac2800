package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies the customer whose request produced the event.
type ActorRef struct {
	CustomerID uuid.UUID  `json:"customerId"`
	StoreID    *uuid.UUID `json:"storeId,omitempty"`
	Role       string     `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// RequestAggregateID maps an idempotency key onto the uuid used as the
// aggregate id of fulfillment_request events. The mapping is stable so a
// request produces at most one rejection event.
func RequestAggregateID(idempotencyKey string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("fulfillment_request:"+idempotencyKey))
}
