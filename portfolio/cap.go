package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type CapKind string

const (
	CapUnlimited CapKind = "unlimited"
	CapDollars   CapKind = "dollars"
	CapPercent   CapKind = "percent"
)

// Cap limits how much of the account's equity is invested. It is useful
// for trying a new allocation with part of a portfolio.
type Cap struct {
	Kind  CapKind
	Value decimal.Decimal
}

// Unlimited invests the whole equity.
var Unlimited = Cap{Kind: CapUnlimited}

// ParseCap accepts "" (unlimited), "$N" (dollar cap) or "N%" (percent cap).
func ParseCap(s string) (Cap, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Unlimited, nil
	case strings.HasPrefix(s, "$"):
		v, err := decimal.NewFromString(strings.ReplaceAll(s[1:], ",", ""))
		if err != nil {
			return Cap{}, fmt.Errorf("portfolio_cap %q: %w", s, err)
		}
		if v.IsNegative() {
			return Cap{}, fmt.Errorf("portfolio_cap %q must not be negative", s)
		}
		return Cap{Kind: CapDollars, Value: v}, nil
	case strings.HasSuffix(s, "%"):
		v, err := decimal.NewFromString(strings.TrimSpace(s[:len(s)-1]))
		if err != nil {
			return Cap{}, fmt.Errorf("portfolio_cap %q: %w", s, err)
		}
		if v.IsNegative() || v.GreaterThan(hundred) {
			return Cap{}, fmt.Errorf("portfolio_cap %q must be between 0%% and 100%%", s)
		}
		return Cap{Kind: CapPercent, Value: v}, nil
	}
	return Cap{}, fmt.Errorf("portfolio_cap %q must be prefixed with '$' or suffixed with '%%'", s)
}

// Apply returns the investable part of equity.
func (c Cap) Apply(equity decimal.Decimal) decimal.Decimal {
	switch c.Kind {
	case CapDollars:
		return decimal.Min(c.Value, equity)
	case CapPercent:
		return equity.Mul(c.Value).Div(hundred)
	}
	return equity
}

func (c Cap) String() string {
	switch c.Kind {
	case CapDollars:
		return "$" + c.Value.String()
	case CapPercent:
		return c.Value.String() + "%"
	}
	return string(CapUnlimited)
}
