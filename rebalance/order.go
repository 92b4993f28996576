package rebalance

import (
	"fmt"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is one estimated trade. Price and Value are estimates at the last
// known price; the broker decides the actual fill.
type Order struct {
	Instrument market.Instrument
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Value      decimal.Decimal
}

func NewOrder(inst market.Instrument, side Side, quantity, price decimal.Decimal) (Order, error) {
	if side != Buy && side != Sell {
		return Order{}, fmt.Errorf("order %s: invalid side %q", inst.Symbol, side)
	}
	if !quantity.IsPositive() {
		return Order{}, fmt.Errorf("order %s: quantity %s must be positive", inst.Symbol, quantity)
	}
	if !price.IsPositive() {
		return Order{}, fmt.Errorf("order %s: price %s must be positive", inst.Symbol, price)
	}
	return Order{
		Instrument: inst,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Value:      quantity.Mul(price),
	}, nil
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s of %s @ %s", o.Side, market.Qty(o.Quantity), o.Instrument.Symbol, o.Price.StringFixed(2))
}
