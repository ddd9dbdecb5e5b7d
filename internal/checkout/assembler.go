package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// BrowsePath is where a shopper with nothing to check out is sent.
const BrowsePath = "/competitions"

// Line is one competition's tickets as priced at submission.
type Line struct {
	CompetitionID uuid.UUID   `json:"competitionId"`
	Title         string      `json:"title,omitempty"`
	UnitPrice     money.Pence `json:"unitPrice"`
	Quantity      int         `json:"quantity"`
	LineTotal     money.Pence `json:"lineTotal"`
}

// Payload is the snapshot handed to the payment step. It copies everything it
// holds, so later cart changes never reach a payload already assembled.
type Payload struct {
	cartID         uuid.UUID
	customer       pkgcheckout.CustomerDetails
	lines          []Line
	total          money.Pence
	totalTickets   int
	currency       enums.Currency
	submittedAt    time.Time
	idempotencyKey string
}

func (p Payload) CartID() uuid.UUID                     { return p.cartID }
func (p Payload) Customer() pkgcheckout.CustomerDetails { return p.customer }
func (p Payload) Total() money.Pence                    { return p.total }
func (p Payload) TotalTickets() int                     { return p.totalTickets }
func (p Payload) Currency() enums.Currency              { return p.currency }
func (p Payload) SubmittedAt() time.Time                { return p.submittedAt }
func (p Payload) IdempotencyKey() string                { return p.idempotencyKey }

// Lines returns a copy of the line snapshot.
func (p Payload) Lines() []Line {
	out := make([]Line, len(p.lines))
	copy(out, p.lines)
	return out
}

// WithIdempotencyKey returns a copy carrying key instead of the derived one.
// An empty key leaves the payload unchanged.
func (p Payload) WithIdempotencyKey(key string) Payload {
	if key == "" {
		return p
	}
	out := p
	out.lines = p.Lines()
	out.idempotencyKey = key
	return out
}

type payloadJSON struct {
	CartID         uuid.UUID                   `json:"cartId"`
	Customer       pkgcheckout.CustomerDetails `json:"customer"`
	Lines          []Line                      `json:"lines"`
	Total          money.Pence                 `json:"total"`
	TotalTickets   int                         `json:"totalTickets"`
	Currency       enums.Currency              `json:"currency"`
	SubmittedAt    time.Time                   `json:"submittedAt"`
	IdempotencyKey string                      `json:"idempotencyKey"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(payloadJSON{
		CartID:         p.cartID,
		Customer:       p.customer,
		Lines:          p.lines,
		Total:          p.total,
		TotalTickets:   p.totalTickets,
		Currency:       p.currency,
		SubmittedAt:    p.submittedAt,
		IdempotencyKey: p.idempotencyKey,
	})
}

// IdempotencyKey derives the submission key from the cart identity and the
// submission instant.
func IdempotencyKey(cartID uuid.UUID, submittedAt time.Time) string {
	sum := sha256.Sum256([]byte(cartID.String() + "|" + submittedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

// ErrEmptyCart is the precondition failure for checking out nothing.
func ErrEmptyCart() error {
	return pkgerrors.New(pkgerrors.CodePrecondition, "cart is empty").
		WithDetails(map[string]any{"cart": "is empty", "redirect": BrowsePath})
}

// Assemble gates a checkout attempt and snapshots it. It never touches the
// network: an empty cart or incomplete details fail here.
func Assemble(c cart.Cart, details pkgcheckout.CustomerDetails, submittedAt time.Time) (Payload, error) {
	if c.IsEmpty() {
		return Payload{}, ErrEmptyCart()
	}
	if err := pkgcheckout.ValidateCustomerDetails(details); err != nil {
		return Payload{}, err
	}
	if err := cart.Verify(c); err != nil {
		return Payload{}, err
	}

	submittedAt = submittedAt.UTC()
	lines := make([]Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, Line{
			CompetitionID: item.CompetitionID,
			Title:         item.Title,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			LineTotal:     item.LineTotal(),
		})
	}
	currency := c.Currency
	if currency == "" {
		currency = enums.CurrencyGBP
	}
	return Payload{
		cartID:         c.ID,
		customer:       details.Normalized(),
		lines:          lines,
		total:          c.Totals.Subtotal,
		totalTickets:   c.Totals.TotalTickets,
		currency:       currency,
		submittedAt:    submittedAt,
		idempotencyKey: IdempotencyKey(c.ID, submittedAt),
	}, nil
}
