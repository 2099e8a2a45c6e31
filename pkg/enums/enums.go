// Package enums holds the string-backed enumerations persisted in Postgres
// columns and carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of known whose text equals value.
func parse[T ~string](kind string, known []T, value string) (T, error) {
	if i := slices.Index(known, T(value)); i >= 0 {
		return known[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
