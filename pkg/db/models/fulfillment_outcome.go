package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// FulfillmentOutcome records the terminal status of one idempotency key.
// Fulfilled rows are written in the order transaction; rejected rows after
// the order transaction rolled back.
type FulfillmentOutcome struct {
	IdempotencyKey string                  `gorm:"column:idempotency_key;primaryKey"`
	Status         enums.FulfillmentStatus `gorm:"column:status;not null"`
	Reason         *enums.RejectionReason  `gorm:"column:reason"`
	RejectedItemID *uuid.UUID              `gorm:"column:rejected_item_id;type:uuid"`
	Detail         *string                 `gorm:"column:detail"`
	OrderID        *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	CustomerID     uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	StoreID        uuid.UUID               `gorm:"column:store_id;type:uuid;not null"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}
