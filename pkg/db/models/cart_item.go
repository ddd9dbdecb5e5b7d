package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// CartItem snapshots the competition's ticket price at the time it was added.
type CartItem struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID   `gorm:"column:cart_id;type:uuid;not null"`
	CompetitionID  uuid.UUID   `gorm:"column:competition_id;type:uuid;not null"`
	Title          string      `gorm:"column:title;not null;default:''"`
	UnitPricePence money.Pence `gorm:"column:unit_price_pence;not null"`
	Quantity       int         `gorm:"column:quantity;not null"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
