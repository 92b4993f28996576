package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a gateway price field to a decimal. Some feeds prefix
// the value with a status letter ("C119.7" for a prior close), so anything
// that is not part of a number is stripped first.
func ParsePrice(s string) (decimal.Decimal, error) {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' {
			buf = append(buf, c)
		}
	}
	if len(buf) == 0 {
		return decimal.Zero, fmt.Errorf("parse price %q: no digits", s)
	}
	d, err := decimal.NewFromString(string(buf))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}

// Truncate rounds x toward zero to the given number of decimal places.
func Truncate(x decimal.Decimal, places int32) decimal.Decimal {
	return x.Truncate(places)
}

// Money formats a cash amount with two decimals for reports.
func Money(x decimal.Decimal) string {
	return x.StringFixed(2)
}

// Qty formats a quantity without trailing zeros ("20", "1.5").
func Qty(x decimal.Decimal) string {
	return x.String()
}
