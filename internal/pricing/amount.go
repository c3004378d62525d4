package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for operator-entered amounts that are not
// non-negative decimal numbers.
var ErrInvalidAmount = errors.New("pricing: amount must be a non-negative number")

// ParseAmount parses an operator-entered amount. Blank input is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Float rounds d to two decimals for JSON output.
func Float(d decimal.Decimal) float64 {
	return Round2(d).InexactFloat64()
}
