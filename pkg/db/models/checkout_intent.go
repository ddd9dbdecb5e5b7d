package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// CheckoutIntent records an assembled checkout payload awaiting a payment
// processor. The idempotency key is unique so a replayed submission resolves
// to the original intent.
type CheckoutIntent struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;not null"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex"`
	TotalPence     money.Pence     `gorm:"column:total_pence;not null"`
	Payload        json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Status         string          `gorm:"column:status;not null;default:'pending_payment'"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (CheckoutIntent) TableName() string { return "checkout_intents" }

func (c *CheckoutIntent) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
