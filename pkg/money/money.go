// Package money converts integer minor units to display and analytics values.
// Amounts are stored and summed as int64 cents; decimals appear only at the edges.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a priced value in minor units of a currency.
type Amount struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// New builds an Amount with its formatted display string.
func New(cents int64, currency string) Amount {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	return Amount{Cents: cents, Currency: currency, Display: Format(cents, currency)}
}

// Major returns the amount in major units, e.g. 1999 -> 19.99.
func Major(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Format renders cents as "19.99 USD".
func Format(cents int64, currency string) string {
	return fmt.Sprintf("%s %s", Major(cents).StringFixed(2), strings.ToUpper(currency))
}

// ParseMajor converts a major-unit string to cents. More than two fractional
// digits is rejected rather than rounded.
func ParseMajor(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-cent precision", value)
	}
	return cents.IntPart(), nil
}

// Sum adds minor-unit values.
func Sum(values ...int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}
