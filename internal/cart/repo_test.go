package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
)

func TestDeleteAbandonedBeforeOnlyTouchesStaleActiveCarts(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	old := time.Now().UTC().Add(-96 * time.Hour)

	stale, err := repo.Create(ctx, &models.CartRecord{OwnerID: uuid.New(), Status: enums.CartStatusActive})
	require.NoError(t, err)
	require.NoError(t, repo.AddItem(ctx, &models.CartItem{CartID: stale.ID, CompetitionID: uuid.New(), Quantity: 2}))
	converted, err := repo.Create(ctx, &models.CartRecord{OwnerID: uuid.New(), Status: enums.CartStatusConverted})
	require.NoError(t, err)
	fresh, err := repo.Create(ctx, &models.CartRecord{OwnerID: uuid.New(), Status: enums.CartStatusActive})
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.CartRecord{}).
		Where("id IN ?", []uuid.UUID{stale.ID, converted.ID}).
		UpdateColumn("updated_at", old).Error)

	deleted, err := repo.DeleteAbandonedBefore(ctx, time.Now().UTC().Add(-72*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.CartRecord{}).Order("created_at").Pluck("id", &remaining).Error)
	require.ElementsMatch(t, []uuid.UUID{converted.ID, fresh.ID}, remaining)

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", stale.ID).Count(&items).Error)
	require.Zero(t, items)
}

func TestDeleteAbandonedBeforeKeepsItemsWhenCartDeleteFails(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	stale, err := repo.Create(ctx, &models.CartRecord{OwnerID: uuid.New(), Status: enums.CartStatusActive})
	require.NoError(t, err)
	require.NoError(t, repo.AddItem(ctx, &models.CartItem{CartID: stale.ID, CompetitionID: uuid.New(), Quantity: 1}))
	require.NoError(t, conn.Model(&models.CartRecord{}).
		Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-96*time.Hour)).Error)

	boom := errors.New("carts delete failed")
	require.NoError(t, conn.Callback().Delete().Before("gorm:delete").Register("test:fail_cart_delete", func(db *gorm.DB) {
		if db.Statement.Table == "carts" {
			_ = db.AddError(boom)
		}
	}))

	_, err = repo.DeleteAbandonedBefore(ctx, time.Now().UTC().Add(-72*time.Hour))
	require.ErrorIs(t, err, boom)

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", stale.ID).Count(&items).Error)
	require.EqualValues(t, 1, items, "item delete rolled back with the cart delete")
}
