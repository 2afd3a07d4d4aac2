// Package utils provides utility functions for the application.
package utils

import "math"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// RoundHalfUp rounds a fractional minor-unit amount to the nearest integer,
// with halves rounding up. Amounts are non-negative; negative inputs would
// round toward positive infinity.
func RoundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
