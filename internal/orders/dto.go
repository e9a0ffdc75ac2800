package orders

import (
	"time"

	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderLineView is one ordered unit as returned by the API.
type OrderLineView struct {
	ItemID    uuid.UUID `json:"item_id"`
	UnitPrice string    `json:"unit_price"`
	Position  int       `json:"position"`
}

// OrderDetail is the read model of a fulfilled order.
type OrderDetail struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	StoreID        uuid.UUID       `json:"store_id"`
	BillAmount     string          `json:"bill_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []OrderLineView `json:"lines"`
}

// OrderList is one page of a customer's orders.
type OrderList struct {
	Orders     []OrderDetail `json:"orders"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// OutcomeView reports the status of an order request to its submitter.
type OutcomeView struct {
	IdempotencyKey string                  `json:"idempotency_key"`
	Status         enums.FulfillmentStatus `json:"status"`
	OrderID        *uuid.UUID              `json:"order_id,omitempty"`
	Reason         *enums.RejectionReason  `json:"reason,omitempty"`
	RejectedItemID *uuid.UUID              `json:"rejected_item_id,omitempty"`
	Detail         *string                 `json:"detail,omitempty"`
}

func newOrderDetail(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:             order.ID,
		IdempotencyKey: order.IdempotencyKey,
		CustomerID:     order.CustomerID,
		MerchantID:     order.MerchantID,
		StoreID:        order.StoreID,
		BillAmount:     order.BillAmount.StringFixed(2),
		CreatedAt:      order.CreatedAt,
		Lines:          make([]OrderLineView, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		detail.Lines = append(detail.Lines, OrderLineView{
			ItemID:    line.ItemID,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Position:  line.Position,
		})
	}
	return detail
}

// NewOutcomeView maps a persisted outcome to its API shape.
func NewOutcomeView(outcome *models.FulfillmentOutcome) *OutcomeView {
	return &OutcomeView{
		IdempotencyKey: outcome.IdempotencyKey,
		Status:         outcome.Status,
		OrderID:        outcome.OrderID,
		Reason:         outcome.Reason,
		RejectedItemID: outcome.RejectedItemID,
		Detail:         outcome.Detail,
	}
}
