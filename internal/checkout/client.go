package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
)

// Transport submits an assembled checkout to the server.
type Transport interface {
	SubmitCheckout(ctx context.Context, details pkgcheckout.CustomerDetails, idempotencyKey string) (Receipt, error)
}

// CartSource exposes the session's current cart, usually a cartsync.Syncer.
type CartSource interface {
	Cart() cart.Cart
}

// Client assembles from the session cart before anything leaves the process.
type Client struct {
	transport Transport
	source    CartSource
	now       func() time.Time
}

func NewClient(transport Transport, source CartSource) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("checkout transport required")
	}
	if source == nil {
		return nil, fmt.Errorf("cart source required")
	}
	return &Client{
		transport: transport,
		source:    source,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit returns the payload that was sent along with the server's receipt.
// Precondition failures return before any network call.
func (c *Client) Submit(ctx context.Context, details pkgcheckout.CustomerDetails) (Payload, Receipt, error) {
	payload, err := Assemble(c.source.Cart(), details, c.now())
	if err != nil {
		return Payload{}, Receipt{}, err
	}
	receipt, err := c.transport.SubmitCheckout(ctx, payload.Customer(), payload.IdempotencyKey())
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit checkout")
		}
		return payload, Receipt{}, err
	}
	return payload, receipt, nil
}
