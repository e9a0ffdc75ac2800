package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// StockMovement is an append-only journal row for every stock mutation.
type StockMovement struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID                 `gorm:"column:store_id;type:uuid;not null;index:idx_stock_movements_pair"`
	ItemID    uuid.UUID                 `gorm:"column:item_id;type:uuid;not null;index:idx_stock_movements_pair"`
	Delta     int                       `gorm:"column:delta;not null"`
	Reason    enums.StockMovementReason `gorm:"column:reason;not null"`
	Reference *string                   `gorm:"column:reference"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
