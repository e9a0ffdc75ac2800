package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// Item is a catalog entry. Price is the current catalog price; orders capture
// their own copy at order time.
type Item struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name       string             `gorm:"column:name;not null"`
	Category   enums.ItemCategory `gorm:"column:category;not null"`
	Price      decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	MerchantID uuid.UUID          `gorm:"column:merchant_id;type:uuid;not null;index"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
