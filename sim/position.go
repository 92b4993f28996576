package sim

import (
	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

// Holding is the paper account's quantity of one instrument.
type Holding struct {
	Instrument market.Instrument
	Quantity   decimal.Decimal
}
