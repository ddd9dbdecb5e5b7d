package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
)

// CartRecord is the persisted cart owned by one user. At most one record per
// owner is active at a time.
type CartRecord struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID        `gorm:"column:owner_id;type:uuid;not null"`
	Status      enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Currency    enums.Currency   `gorm:"column:currency;not null;default:'GBP'"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartRecord) TableName() string { return "carts" }

func (c *CartRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
