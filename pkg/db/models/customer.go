package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// Customer is an account that can place orders or own stores.
type Customer struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name      string             `gorm:"column:name;not null"`
	Email     *string            `gorm:"column:email;uniqueIndex"`
	Role      enums.CustomerRole `gorm:"column:role;not null;default:'consumer'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
