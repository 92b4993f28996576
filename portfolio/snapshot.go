package portfolio

import (
	"fmt"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

// Snapshot is a read-only view of an account at one instant. Equity is
// always derived from cash and positions, never stored.
type Snapshot struct {
	cash      decimal.Decimal
	positions []Position
	index     map[string]int
	prices    map[string]decimal.Decimal
}

// NewSnapshot builds a snapshot. prices supplies last known prices for
// instruments that are not held (typically target-only instruments); a
// held position's own price always takes precedence.
func NewSnapshot(cash decimal.Decimal, positions []Position, prices map[string]decimal.Decimal) (Snapshot, error) {
	s := Snapshot{
		cash:      cash,
		positions: make([]Position, 0, len(positions)),
		index:     make(map[string]int, len(positions)),
		prices:    make(map[string]decimal.Decimal, len(prices)),
	}
	for _, p := range positions {
		key := p.Instrument.Key()
		if key == "" {
			return Snapshot{}, fmt.Errorf("%w: instrument is required", ErrInvalidPosition)
		}
		if _, dup := s.index[key]; dup {
			return Snapshot{}, fmt.Errorf("%w: %s appears twice", ErrInvalidPosition, key)
		}
		if p.Quantity.IsNegative() || p.Price.IsNegative() {
			return Snapshot{}, fmt.Errorf("%w: %s has negative quantity or price", ErrInvalidPosition, key)
		}
		s.index[key] = len(s.positions)
		s.positions = append(s.positions, p)
	}
	for sym, px := range prices {
		if px.IsNegative() {
			return Snapshot{}, fmt.Errorf("%w: %s price %s is negative", ErrInvalidPosition, sym, px)
		}
		s.prices[sym] = px
	}
	return s, nil
}

func (s Snapshot) Cash() decimal.Decimal {
	return s.cash
}

// Positions returns a copy in the order they were supplied.
func (s Snapshot) Positions() []Position {
	out := make([]Position, len(s.positions))
	copy(out, s.positions)
	return out
}

func (s Snapshot) Position(inst market.Instrument) (Position, bool) {
	i, ok := s.index[inst.Key()]
	if !ok {
		return Position{}, false
	}
	return s.positions[i], true
}

// HeldQuantity is zero for instruments not in the snapshot.
func (s Snapshot) HeldQuantity(inst market.Instrument) decimal.Decimal {
	if p, ok := s.Position(inst); ok {
		return p.Quantity
	}
	return decimal.Zero
}

// PriceOf returns the last known price of inst and whether one is known.
func (s Snapshot) PriceOf(inst market.Instrument) (decimal.Decimal, bool) {
	if p, ok := s.Position(inst); ok && p.Priced() {
		return p.Price, true
	}
	if px, ok := s.prices[inst.Key()]; ok && px.IsPositive() {
		return px, true
	}
	return decimal.Zero, false
}

func (s Snapshot) MarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

func (s Snapshot) TotalEquity() decimal.Decimal {
	return s.cash.Add(s.MarketValue())
}

// WithPrices returns a copy of s with extra supplementary prices merged in.
func (s Snapshot) WithPrices(prices map[string]decimal.Decimal) (Snapshot, error) {
	merged := make(map[string]decimal.Decimal, len(s.prices)+len(prices))
	for k, v := range s.prices {
		merged[k] = v
	}
	for k, v := range prices {
		merged[k] = v
	}
	return NewSnapshot(s.cash, s.positions, merged)
}
