package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

const defaultCartAbandonAfter = 7 * 24 * time.Hour

type abandonedCartPruner interface {
	DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Repository abandonedCartPruner
	// AbandonAfter is the idle time after which an active cart is dropped.
	AbandonAfter time.Duration
}

// NewCartExpiryJob deletes active carts nobody has touched for AbandonAfter.
// The owner simply starts from an empty cart next time.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	after := params.AbandonAfter
	if after <= 0 {
		after = defaultCartAbandonAfter
	}
	return &cartExpiryJob{logg: params.Logger, repo: params.Repository, after: after, now: time.Now}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	repo  abandonedCartPruner
	after time.Duration
	now   func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	deleted, err := j.repo.DeleteAbandonedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cart expiry: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": deleted,
	}), "abandoned carts swept")
	return nil
}
