// Package money holds GBP amounts as integer pence so that totals over many
// line items never accumulate floating-point error.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pence is an amount in minor units.
type Pence int64

const Zero Pence = 0

// FromPounds converts a major-unit decimal string such as "12.50" into pence.
// More than two decimal places is rejected rather than rounded.
func FromPounds(value string) (Pence, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "£"))
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", value)
	}
	return Pence(minor.IntPart()), nil
}

// MustPounds is FromPounds for constants in tests and seeds.
func MustPounds(value string) Pence {
	p, err := FromPounds(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Mul returns p multiplied by a quantity.
func (p Pence) Mul(qty int) Pence {
	return p * Pence(qty)
}

// Decimal returns the major-unit value.
func (p Pence) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Shift(-2)
}

// String renders the amount with exactly two decimal places, e.g. "37.50".
func (p Pence) String() string {
	return p.Decimal().StringFixed(2)
}

// Format renders the amount with the pound sign, e.g. "£37.50".
func (p Pence) Format() string {
	if p < 0 {
		return "-£" + (-p).String()
	}
	return "£" + p.String()
}

// MarshalJSON encodes as a fixed two-decimal string so clients never see a float.
func (p Pence) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the string form or an integer number of pence.
func (p *Pence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := FromPounds(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a decimal string or integer pence: %w", err)
	}
	*p = Pence(n)
	return nil
}

// Value stores pence as an integer column.
func (p Pence) Value() (driver.Value, error) {
	return int64(p), nil
}

// Scan reads an integer pence column.
func (p *Pence) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = Pence(v)
	case int32:
		*p = Pence(v)
	case int:
		*p = Pence(v)
	case nil:
		*p = 0
	default:
		return fmt.Errorf("cannot scan %T into money.Pence", src)
	}
	return nil
}
