package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/cartsync"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/storefront"
)

const usage = `usage: raffle <command> [args]

commands:
  login -email E -password P      sign in and print the access token
  competitions                    list live competitions
  cart                            show the current cart
  enter -answer A <competition> <qty>
                                  answer the question and add tickets
  set <item> <qty>                set a line quantity
  inc <item> | dec <item>         step a line quantity
  remove <item>                   drop a line
  clear                           empty the cart
  checkout -name N -email E -address A [-address2 A2] -city C -postcode P -country K
                                  submit the cart for payment
`

type app struct {
	client   *storefront.Client
	syncer   *cartsync.Syncer
	checkout *checkout.Client
	logg     *logger.Logger
	out      io.Writer
}

func newApp(client *storefront.Client, logg *logger.Logger, out io.Writer, strict bool) (*app, error) {
	validator, err := entry.NewValidator(client, logg)
	if err != nil {
		return nil, err
	}
	syncer, err := cartsync.New(cart.NewStore(), client, logg, cartsync.Options{Checker: validator, StrictInvariants: strict})
	if err != nil {
		return nil, err
	}
	checkoutClient, err := checkout.NewClient(client, syncer)
	if err != nil {
		return nil, err
	}
	return &app{client: client, syncer: syncer, checkout: checkoutClient, logg: logg, out: out}, nil
}

// Run executes one command and returns the process exit code.
func (a *app) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return 2
	}
	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "competitions":
		page, err := a.client.ListCompetitions(ctx, "")
		if err != nil {
			return err
		}
		return a.print(page)
	}

	// Everything below works on the server cart, so load it first.
	if _, err := a.syncer.FetchCart(ctx); err != nil {
		return err
	}

	switch cmd {
	case "cart":
		return a.print(a.syncer.Cart())
	case "enter":
		return a.enter(ctx, args)
	case "set":
		itemID, qty, err := itemAndQuantity(args)
		if err != nil {
			return err
		}
		return a.printCart(a.syncer.UpdateItem(ctx, itemID, qty))
	case "inc", "dec":
		itemID, err := itemArg(args)
		if err != nil {
			return err
		}
		if cmd == "inc" {
			return a.printCart(a.syncer.Increment(ctx, itemID))
		}
		return a.printCart(a.syncer.Decrement(ctx, itemID))
	case "remove":
		itemID, err := itemArg(args)
		if err != nil {
			return err
		}
		return a.printCart(a.syncer.RemoveItem(ctx, itemID))
	case "clear":
		return a.printCart(a.syncer.ClearCart(ctx))
	case "checkout":
		return a.submit(ctx, args)
	default:
		fmt.Fprint(a.out, usage)
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown command "+strconv.Quote(cmd))
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flags")
	}
	session, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return a.print(session)
}

type entryView struct {
	Verdict string    `json:"verdict"`
	Added   bool      `json:"added"`
	Cart    cart.Cart `json:"cart"`
}

func (a *app) enter(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enter", flag.ContinueOnError)
	fs.SetOutput(a.out)
	answer := fs.String("answer", "", "answer to the qualifying question")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flags")
	}
	competitionID, qty, err := itemAndQuantity(fs.Args())
	if err != nil {
		return err
	}
	result, err := a.syncer.Enter(ctx, competitionID, *answer, qty)
	if err != nil {
		return err
	}
	return a.print(entryView{Verdict: result.Outcome.String(), Added: result.Added(), Cart: result.Cart})
}

type checkoutView struct {
	Payload checkout.Payload `json:"payload"`
	Receipt checkout.Receipt `json:"receipt"`
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var details pkgcheckout.CustomerDetails
	fs.StringVar(&details.Name, "name", "", "full name")
	fs.StringVar(&details.Email, "email", "", "email address")
	fs.StringVar(&details.AddressLine1, "address", "", "address line 1")
	fs.StringVar(&details.AddressLine2, "address2", "", "address line 2")
	fs.StringVar(&details.City, "city", "", "town or city")
	fs.StringVar(&details.Postcode, "postcode", "", "postcode")
	fs.StringVar(&details.Country, "country", "", "country")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flags")
	}
	payload, receipt, err := a.checkout.Submit(ctx, details)
	if err != nil {
		return err
	}
	return a.print(checkoutView{Payload: payload, Receipt: receipt})
}

func (a *app) printCart(c cart.Cart, err error) error {
	if err != nil {
		return err
	}
	return a.print(c)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (a *app) printError(err error) {
	view := errorView{Code: string(pkgerrors.CodeInternal), Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		view = errorView{Code: string(typed.Code()), Message: typed.Message(), Details: typed.Details()}
	}
	_ = a.print(map[string]errorView{"error": view})
}

func itemArg(args []string) (uuid.UUID, error) {
	if len(args) < 1 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "id must be a uuid")
	}
	return id, nil
}

func itemAndQuantity(args []string) (uuid.UUID, int, error) {
	id, err := itemArg(args)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if len(args) < 2 {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity required")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quantity must be a number")
	}
	return id, qty, nil
}
