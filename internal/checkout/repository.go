package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
)

// IntentRepository persists checkout intents.
type IntentRepository interface {
	WithTx(tx *gorm.DB) IntentRepository
	FindByKey(ctx context.Context, key string) (*models.CheckoutIntent, error)
	Create(ctx context.Context, intent *models.CheckoutIntent) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) IntentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByKey returns gorm.ErrRecordNotFound when no intent carries key.
func (r *Repository) FindByKey(ctx context.Context, key string) (*models.CheckoutIntent, error) {
	var intent models.CheckoutIntent
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *Repository) Create(ctx context.Context, intent *models.CheckoutIntent) error {
	if intent.Status == "" {
		intent.Status = StatusPendingPayment
	}
	return r.db.WithContext(ctx).Create(intent).Error
}
