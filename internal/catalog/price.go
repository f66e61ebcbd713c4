package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var maxPrice = decimal.NewFromInt(1_000_000)

// FormatPrice renders a USD price with two decimals.
func FormatPrice(p decimal.Decimal) string {
	return "$" + p.StringFixed(2)
}

// ParsePrice reads a user-typed USD price such as "12", "$4.99" or "0,50".
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", ".")

	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q", s)
	}
	if !p.IsPositive() {
		return decimal.Zero, errors.New("price must be greater than zero")
	}
	if !p.Equal(p.Round(2)) {
		return decimal.Zero, errors.New("price can have at most two decimals")
	}
	if p.GreaterThan(maxPrice) {
		return decimal.Zero, fmt.Errorf("price must not exceed %s", FormatPrice(maxPrice))
	}
	return p.Round(2), nil
}
