package competitions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/angelmondragon/rafflehouse-backend/pkg/pagination"
)

// Repository handles competition persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to competition operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, c *models.Competition) error {
	if c == nil {
		return fmt.Errorf("competition is required")
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Competition, error) {
	var c models.Competition
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns competitions newest first, optionally filtered by status, after
// the keyset cursor. It fetches limit rows as given; callers pass a buffered
// limit to detect a next page.
func (r *Repository) List(ctx context.Context, status enums.CompetitionStatus, cursor *pagination.Cursor, limit int) ([]models.Competition, error) {
	q := r.db.WithContext(ctx).Model(&models.Competition{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Competition
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Save(ctx context.Context, c *models.Competition) error {
	if c == nil {
		return fmt.Errorf("competition is required")
	}
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Competition{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountCartReferences reports how many cart lines point at the competition.
func (r *Repository) CountCartReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("competition_id = ?", id).Count(&n).Error
	return n, err
}
