package sim

import (
	"time"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/shopspring/decimal"
)

// Fill records one executed paper order.
type Fill struct {
	ID         string
	Instrument market.Instrument
	Side       rebalance.Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Time       time.Time
}

func (f Fill) Value() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}
