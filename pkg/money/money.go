// Package money centralizes monetary arithmetic. All amounts are decimals
// rounded to two places; naive float math is never used for balances.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Round2 rounds an amount to two decimal places, the precision every balance
// and deposit amount is stored at.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromMinorUnits converts a provider amount expressed in minor units (cents)
// to a two-place decimal.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}

// ToMinorUnits converts a two-place decimal to the minor-unit integer form
// payment providers expect.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round2(d).Shift(2).IntPart()
}

// Within reports whether a and b differ by no more than tolerance.
func Within(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// Parse parses a decimal amount from its string form, rejecting values that
// are not valid decimals.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
