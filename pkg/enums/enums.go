package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against valid; what names the enum in errors.
func parse[T ~string](value string, valid []T, what string) (T, error) {
	if slices.Contains(valid, T(value)) {
		return T(value), nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", what, value)
}
