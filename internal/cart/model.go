package cart

import (
	"fmt"
	"time"

	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
	"github.com/google/uuid"
)

// MinQuantity is the floor for any persisted line item. Removing an item is a
// separate operation from lowering its quantity.
const MinQuantity = 1

// Item is one competition's ticket request inside a cart.
type Item struct {
	ID            uuid.UUID   `json:"id"`
	CompetitionID uuid.UUID   `json:"competitionId"`
	Title         string      `json:"title,omitempty"`
	UnitPrice     money.Pence `json:"unitPrice"`
	Quantity      int         `json:"quantity"`
}

// LineTotal is unit price times quantity.
func (i Item) LineTotal() money.Pence {
	return i.UnitPrice.Mul(i.Quantity)
}

// Totals is derived from a cart's items and never set independently.
type Totals struct {
	ItemCount    int         `json:"itemCount"`
	Subtotal     money.Pence `json:"subtotal"`
	TotalTickets int         `json:"totalTickets"`
}

// Cart is the server-authoritative set of line items for one owner.
type Cart struct {
	ID        uuid.UUID      `json:"id"`
	Items     []Item         `json:"items"`
	Totals    Totals         `json:"totals"`
	Currency  enums.Currency `json:"currency"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// DeriveTotals is the only place totals are computed.
func DeriveTotals(items []Item) Totals {
	totals := Totals{ItemCount: len(items)}
	for _, item := range items {
		totals.Subtotal += item.LineTotal()
		totals.TotalTickets += item.Quantity
	}
	return totals
}

// Empty is the canonical "no cart yet" value: zero items and zero totals.
func Empty() Cart {
	return Cart{Items: []Item{}, Currency: enums.CurrencyGBP}
}

// New builds a cart from items, computing totals from them.
func New(id uuid.UUID, items []Item, updatedAt time.Time) Cart {
	c := Cart{
		ID:        id,
		Items:     cloneItems(items),
		Currency:  enums.CurrencyGBP,
		UpdatedAt: updatedAt,
	}
	c.Totals = DeriveTotals(c.Items)
	return c
}

// IsEmpty reports whether the cart has no line items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the line item with the given id.
func (c Cart) FindItem(itemID uuid.UUID) (Item, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

// FindCompetition returns the line item for the given competition.
func (c Cart) FindCompetition(competitionID uuid.UUID) (Item, bool) {
	for _, item := range c.Items {
		if item.CompetitionID == competitionID {
			return item, true
		}
	}
	return Item{}, false
}

// Clone returns a deep copy so callers cannot mutate shared item slices.
func (c Cart) Clone() Cart {
	out := c
	out.Items = cloneItems(c.Items)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Verify checks that carried totals agree with the items and that every
// quantity respects the floor. A failure is an INVARIANT_VIOLATION.
func Verify(c Cart) error {
	for _, item := range c.Items {
		if item.Quantity < MinQuantity {
			return pkgerrors.New(pkgerrors.CodeInvariant, "cart item quantity below floor").
				WithDetails(map[string]any{"itemId": item.ID, "quantity": item.Quantity})
		}
		if item.UnitPrice < 0 {
			return pkgerrors.New(pkgerrors.CodeInvariant, "cart item has negative unit price").
				WithDetails(map[string]any{"itemId": item.ID})
		}
	}
	derived := DeriveTotals(c.Items)
	if derived != c.Totals {
		return pkgerrors.New(pkgerrors.CodeInvariant, "cart totals disagree with items").
			WithDetails(map[string]any{
				"carried": fmt.Sprintf("%+v", c.Totals),
				"derived": fmt.Sprintf("%+v", derived),
			})
	}
	return nil
}

// ValidateQuantity rejects quantities below the floor or above max. A max of
// zero disables the upper bound.
func ValidateQuantity(qty, max int) error {
	if qty < MinQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": "must be at least 1"})
	}
	if max > 0 && qty > max {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds maximum").
			WithDetails(map[string]any{"quantity": fmt.Sprintf("must be at most %d", max)})
	}
	return nil
}
