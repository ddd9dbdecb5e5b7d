package cart

import (
	"context"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*models.CartRecord, error)
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	AddItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	UpdateStatus(ctx context.Context, id, ownerID uuid.UUID, status enums.CartStatus) error
}

// CompetitionLoader resolves the competition a ticket request targets.
type CompetitionLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Competition, error)
}

// EntryGate answers whether an owner has passed the qualifying question for a
// competition and retires the pass once it has been spent.
type EntryGate interface {
	HasPass(ctx context.Context, ownerID, competitionID uuid.UUID) (bool, error)
	ConsumePass(ctx context.Context, ownerID, competitionID uuid.UUID) error
}
