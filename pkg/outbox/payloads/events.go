package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// OrderFulfilledEvent is emitted in the same transaction that commits an order.
type OrderFulfilledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	CustomerID     uuid.UUID `json:"customer_id"`
	MerchantID     uuid.UUID `json:"merchant_id"`
	StoreID        uuid.UUID `json:"store_id"`
	BillAmount     string    `json:"bill_amount"`
	LineCount      int       `json:"line_count"`
}

// OrderRejectedEvent is emitted when a request ends in a business rejection.
// No stock was consumed.
type OrderRejectedEvent struct {
	IdempotencyKey string                `json:"idempotency_key"`
	CustomerID     uuid.UUID             `json:"customer_id"`
	StoreID        uuid.UUID             `json:"store_id"`
	Reason         enums.RejectionReason `json:"reason"`
	ItemID         *uuid.UUID            `json:"item_id,omitempty"`
	Detail         string                `json:"detail,omitempty"`
}
