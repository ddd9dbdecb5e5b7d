package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
)

// CustomerDetails is the contact and billing address captured at checkout.
// Rules live under the checkout tag so request decoding leaves them to
// ValidateCustomerDetails, which reports them as precondition failures.
type CustomerDetails struct {
	Name         string `json:"name" checkout:"required,max=200"`
	Email        string `json:"email" checkout:"required,email,max=254"`
	AddressLine1 string `json:"addressLine1" checkout:"required,max=200"`
	AddressLine2 string `json:"addressLine2,omitempty" checkout:"max=200"`
	City         string `json:"city" checkout:"required,max=100"`
	Postcode     string `json:"postcode" checkout:"required,max=16"`
	Country      string `json:"country" checkout:"required,max=64"`
}

// Normalized trims surrounding whitespace from every field.
func (d CustomerDetails) Normalized() CustomerDetails {
	return CustomerDetails{
		Name:         strings.TrimSpace(d.Name),
		Email:        strings.TrimSpace(d.Email),
		AddressLine1: strings.TrimSpace(d.AddressLine1),
		AddressLine2: strings.TrimSpace(d.AddressLine2),
		City:         strings.TrimSpace(d.City),
		Postcode:     strings.ToUpper(strings.TrimSpace(d.Postcode)),
		Country:      strings.TrimSpace(d.Country),
	}
}

var detailsValidator = newDetailsValidator()

func newDetailsValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("checkout")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateCustomerDetails checks the form locally. Every offending field is
// reported at once, keyed by its JSON name.
func ValidateCustomerDetails(d CustomerDetails) error {
	err := detailsValidator.Struct(d.Normalized())
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodePrecondition, err, "customer details invalid")
	}
	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodePrecondition, "customer details incomplete").
		WithDetails(map[string]any{"fields": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}
