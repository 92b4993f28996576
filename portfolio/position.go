// Package portfolio holds the immutable inputs of a rebalance run: the
// position snapshot fetched from the broker and the allocation target
// loaded from configuration.
package portfolio

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTarget is returned when target weights fall outside [0,1]
	// or sum to more than 1.
	ErrInvalidTarget = errors.New("invalid allocation target")
	// ErrInvalidPosition is returned for negative quantities or prices.
	ErrInvalidPosition = errors.New("invalid position")
)

// Position is a long holding. A zero Price means the price is unknown; such
// a position contributes nothing to equity.
type Position struct {
	Instrument market.Instrument
	Quantity   decimal.Decimal
	Price      decimal.Decimal
}

func NewPosition(inst market.Instrument, quantity, price decimal.Decimal) (Position, error) {
	if inst.Symbol == "" {
		return Position{}, fmt.Errorf("%w: instrument is required", ErrInvalidPosition)
	}
	if quantity.IsNegative() {
		return Position{}, fmt.Errorf("%w: %s quantity %s is negative", ErrInvalidPosition, inst.Symbol, quantity)
	}
	if price.IsNegative() {
		return Position{}, fmt.Errorf("%w: %s price %s is negative", ErrInvalidPosition, inst.Symbol, price)
	}
	return Position{Instrument: inst, Quantity: quantity, Price: price}, nil
}

func (p Position) Priced() bool {
	return p.Price.IsPositive()
}

func (p Position) MarketValue() decimal.Decimal {
	if !p.Priced() {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.Price)
}
