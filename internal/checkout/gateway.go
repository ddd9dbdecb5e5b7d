package checkout

import (
	"context"

	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

// StatusPendingPayment is the intent status until a processor takes over.
const StatusPendingPayment = "pending_payment"

// PaymentGateway receives an assembled payload once its intent is stored.
type PaymentGateway interface {
	Begin(ctx context.Context, intentID string, payload Payload) error
}

// PendingGateway accepts every payload and captures nothing. Intents stay
// pending_payment.
type PendingGateway struct {
	logg *logger.Logger
}

func NewPendingGateway(logg *logger.Logger) *PendingGateway {
	return &PendingGateway{logg: logg}
}

func (g *PendingGateway) Begin(ctx context.Context, intentID string, payload Payload) error {
	if g.logg == nil {
		return nil
	}
	ctx = g.logg.WithFields(ctx, map[string]any{
		"checkout_intent_id": intentID,
		"total":              payload.Total().String(),
		"total_tickets":      payload.TotalTickets(),
	})
	g.logg.Info(ctx, "checkout intent awaiting payment processor")
	return nil
}
