package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreItem is the stock entry for one item at one store. The row exists only
// while the store carries the item.
type StoreItem struct {
	StoreID        uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	ItemID         uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey"`
	AvailableCount int       `gorm:"column:available_count;not null;default:0;check:chk_store_items_available_count,available_count >= 0"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
