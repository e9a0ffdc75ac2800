package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is written once per fulfilled request.
type Order struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex:ux_orders_idempotency_key"`
	CustomerID     uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;index"`
	MerchantID     uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null"`
	StoreID        uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	BillAmount     decimal.Decimal `gorm:"column:bill_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	Lines          []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
