// Package enums holds the string-backed value sets stored in the database
// and exchanged over the API. Parsing is case sensitive.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind string, valid []T, value string) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
