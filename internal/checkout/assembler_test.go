package checkout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

var submittedAt = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func details() pkgcheckout.CustomerDetails {
	return pkgcheckout.CustomerDetails{
		Name:         "Grace Hopper",
		Email:        "grace@example.com",
		AddressLine1: "1 Navy Yard",
		City:         "Portsmouth",
		Postcode:     "po1 3lj",
		Country:      "United Kingdom",
	}
}

func twoLineCart() cart.Cart {
	return cart.New(uuid.New(), []cart.Item{
		{ID: uuid.New(), CompetitionID: uuid.New(), Title: "Supercar", UnitPrice: money.MustPounds("2.50"), Quantity: 4},
		{ID: uuid.New(), CompetitionID: uuid.New(), Title: "Watch", UnitPrice: money.MustPounds("0.99"), Quantity: 1},
	}, submittedAt)
}

func TestAssembleEmptyCartRedirectsToBrowse(t *testing.T) {
	_, err := Assemble(cart.Empty(), details(), submittedAt)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePrecondition))
	d := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "is empty", d["cart"])
	assert.Equal(t, BrowsePath, d["redirect"])
}

func TestAssembleIncompleteDetails(t *testing.T) {
	d := details()
	d.Postcode = ""
	_, err := Assemble(twoLineCart(), d, submittedAt)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePrecondition))
	fields := pkgerrors.As(err).Details().(map[string]any)["fields"].(map[string]string)
	assert.Equal(t, "is required", fields["postcode"])
}

func TestAssembleRejectsDriftedTotals(t *testing.T) {
	c := twoLineCart()
	c.Totals.Subtotal++
	_, err := Assemble(c, details(), submittedAt)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
}

func TestAssembleSnapshotsTheCart(t *testing.T) {
	c := twoLineCart()
	payload, err := Assemble(c, details(), submittedAt)
	require.NoError(t, err)

	assert.Equal(t, money.MustPounds("10.99"), payload.Total())
	assert.Equal(t, 5, payload.TotalTickets())
	assert.Equal(t, "PO1 3LJ", payload.Customer().Postcode)

	c.Items[0].Quantity = 99
	c.Items = append(c.Items, cart.Item{Quantity: 1})
	lines := payload.Lines()
	lines[0].Quantity = 42

	again := payload.Lines()
	require.Len(t, again, 2)
	assert.Equal(t, 4, again[0].Quantity)
	assert.Equal(t, money.MustPounds("10.00"), again[0].LineTotal)
}

func TestIdempotencyKeyDependsOnCartAndInstant(t *testing.T) {
	id := uuid.New()
	k1 := IdempotencyKey(id, submittedAt)
	assert.Len(t, k1, 64)
	assert.Equal(t, k1, IdempotencyKey(id, submittedAt.In(time.FixedZone("BST", 3600))))
	assert.NotEqual(t, k1, IdempotencyKey(id, submittedAt.Add(time.Millisecond)))
	assert.NotEqual(t, k1, IdempotencyKey(uuid.New(), submittedAt))
}

func TestWithIdempotencyKeyReturnsCopy(t *testing.T) {
	payload, err := Assemble(twoLineCart(), details(), submittedAt)
	require.NoError(t, err)
	derived := payload.IdempotencyKey()

	overridden := payload.WithIdempotencyKey("client-key")
	assert.Equal(t, "client-key", overridden.IdempotencyKey())
	assert.Equal(t, derived, payload.IdempotencyKey())
	assert.Equal(t, derived, payload.WithIdempotencyKey("").IdempotencyKey())
}

func TestPayloadMarshalsCamelCase(t *testing.T) {
	payload, err := Assemble(twoLineCart(), details(), submittedAt)
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "10.99", decoded["total"])
	assert.EqualValues(t, 5, decoded["totalTickets"])
	assert.Equal(t, payload.IdempotencyKey(), decoded["idempotencyKey"])
	customer := decoded["customer"].(map[string]any)
	assert.Equal(t, "1 Navy Yard", customer["addressLine1"])
	assert.Len(t, decoded["lines"], 2)
}
