package cart

import (
	"math/rand"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
	"github.com/google/uuid"
)

func item(price string, qty int) Item {
	return Item{
		ID:            uuid.New(),
		CompetitionID: uuid.New(),
		UnitPrice:     money.MustPounds(price),
		Quantity:      qty,
	}
}

func TestDeriveTotalsSingleItem(t *testing.T) {
	totals := DeriveTotals([]Item{item("12.50", 3)})
	if totals.ItemCount != 1 || totals.TotalTickets != 3 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Subtotal.String() != "37.50" {
		t.Fatalf("expected subtotal 37.50, got %s", totals.Subtotal)
	}
}

func TestDeriveTotalsAfterQuantityChange(t *testing.T) {
	items := []Item{item("12.50", 3)}
	items[0].Quantity = 5
	totals := DeriveTotals(items)
	if totals.Subtotal.String() != "62.50" || totals.TotalTickets != 5 || totals.ItemCount != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestDeriveTotalsTwoItems(t *testing.T) {
	totals := DeriveTotals([]Item{item("12.50", 3), item("20.00", 2)})
	if totals.Subtotal.String() != "77.50" {
		t.Fatalf("expected subtotal 77.50, got %s", totals.Subtotal)
	}
	if totals.TotalTickets != 5 || totals.ItemCount != 2 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestDeriveTotalsEmpty(t *testing.T) {
	totals := DeriveTotals(nil)
	if totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
	if Empty().Totals.Subtotal.String() != "0.00" {
		t.Fatalf("empty cart subtotal should render 0.00")
	}
}

func TestTotalsHoldAfterEveryMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := []string{"0.99", "1.00", "2.50", "12.50", "20.00", "0.10"}
	var items []Item

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(items) == 0:
			items = append(items, item(prices[rng.Intn(len(prices))], 1+rng.Intn(9)))
		case op == 1:
			items[rng.Intn(len(items))].Quantity = 1 + rng.Intn(20)
		default:
			idx := rng.Intn(len(items))
			items = append(items[:idx], items[idx+1:]...)
		}

		c := New(uuid.New(), items, time.Now())
		var subtotal money.Pence
		var tickets int
		for _, it := range c.Items {
			subtotal += it.UnitPrice.Mul(it.Quantity)
			tickets += it.Quantity
		}
		if c.Totals.Subtotal != subtotal || c.Totals.TotalTickets != tickets || c.Totals.ItemCount != len(c.Items) {
			t.Fatalf("step %d: totals %+v disagree with items", step, c.Totals)
		}
		if err := Verify(c); err != nil {
			t.Fatalf("step %d: verify failed: %v", step, err)
		}
	}
}

func TestVerifyDetectsDrift(t *testing.T) {
	c := New(uuid.New(), []Item{item("12.50", 3)}, time.Now())
	c.Totals.Subtotal = money.MustPounds("1.00")

	err := Verify(c)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	c = New(uuid.New(), []Item{item("12.50", 3)}, time.Now())
	c.Items[0].Quantity = 0
	c.Totals = DeriveTotals(c.Items)
	if !pkgerrors.IsCode(Verify(c), pkgerrors.CodeInvariant) {
		t.Fatalf("expected invariant violation for zero quantity")
	}
}

func TestValidateQuantity(t *testing.T) {
	if err := ValidateQuantity(0, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for 0, got %v", err)
	}
	if err := ValidateQuantity(1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateQuantity(11, 10); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error above max, got %v", err)
	}
	if err := ValidateQuantity(10, 10); err != nil {
		t.Fatalf("max itself should be allowed: %v", err)
	}
}

func TestNewCopiesItems(t *testing.T) {
	items := []Item{item("12.50", 3)}
	c := New(uuid.New(), items, time.Now())
	items[0].Quantity = 99
	if c.Items[0].Quantity != 3 {
		t.Fatalf("cart should not alias caller slice")
	}
}

func TestStoreSetCartNilResetsToEmpty(t *testing.T) {
	store := NewStore()
	full := New(uuid.New(), []Item{item("12.50", 3)}, time.Now())
	store.SetCart(&full)
	if store.Totals().TotalTickets != 3 {
		t.Fatalf("expected 3 tickets after set")
	}

	got := store.SetCart(nil)
	if !got.IsEmpty() || got.Totals != (Totals{}) || got.ID != uuid.Nil {
		t.Fatalf("expected empty cart, got %+v", got)
	}
	if got.Items == nil {
		t.Fatalf("empty cart should carry a non-nil item slice")
	}
}

func TestStoreSetCartRecomputesTotals(t *testing.T) {
	store := NewStore()
	c := New(uuid.New(), []Item{item("12.50", 3), item("20.00", 2)}, time.Now())
	c.Totals = Totals{ItemCount: 9, Subtotal: 1, TotalTickets: 9}

	got := store.SetCart(&c)
	if got.Totals.Subtotal.String() != "77.50" || got.Totals.TotalTickets != 5 || got.Totals.ItemCount != 2 {
		t.Fatalf("store should derive totals, got %+v", got.Totals)
	}
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewStore()
	c := New(uuid.New(), []Item{item("12.50", 3)}, time.Now())
	store.SetCart(&c)

	snap := store.Cart()
	snap.Items[0].Quantity = 50
	c.Items[0].Quantity = 40

	if store.Cart().Items[0].Quantity != 3 {
		t.Fatalf("store cart mutated through a copy")
	}
}

func TestFindHelpers(t *testing.T) {
	first := item("12.50", 3)
	c := New(uuid.New(), []Item{first, item("20.00", 2)}, time.Now())

	if got, ok := c.FindItem(first.ID); !ok || got.Quantity != 3 {
		t.Fatalf("expected to find item by id")
	}
	if _, ok := c.FindCompetition(first.CompetitionID); !ok {
		t.Fatalf("expected to find item by competition")
	}
	if _, ok := c.FindItem(uuid.New()); ok {
		t.Fatalf("unexpected item found")
	}
}
