package payloads

import (
	"time"

	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
	"github.com/google/uuid"
)

// CheckoutSubmittedEvent is emitted when a checkout intent is recorded and the
// payload is ready for a payment processor.
type CheckoutSubmittedEvent struct {
	CheckoutIntentID uuid.UUID             `json:"checkoutIntentId"`
	CartID           uuid.UUID             `json:"cartId"`
	UserID           uuid.UUID             `json:"userId"`
	IdempotencyKey   string                `json:"idempotencyKey"`
	Total            money.Pence           `json:"total"`
	TotalTickets     int                   `json:"totalTickets"`
	Lines            []CheckoutLineSummary `json:"lines"`
	SubmittedAt      time.Time             `json:"submittedAt"`
}

// CheckoutLineSummary is one competition's ticket count within a checkout.
type CheckoutLineSummary struct {
	CompetitionID uuid.UUID   `json:"competitionId"`
	Quantity      int         `json:"quantity"`
	UnitPrice     money.Pence `json:"unitPrice"`
}

// CompetitionClosedEvent is emitted when an admin closes a competition to
// further entries.
type CompetitionClosedEvent struct {
	CompetitionID uuid.UUID  `json:"competitionId"`
	Title         string     `json:"title"`
	DrawAt        *time.Time `json:"drawAt,omitempty"`
}
