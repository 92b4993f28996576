// Package rebalance computes the orders that move a portfolio toward its
// target weights. Everything here is a pure in-memory transformation: the
// same snapshot, target and config always produce the same plan.
package rebalance

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/shopspring/decimal"
)

// Drift is the gap between where one instrument is and where it should be.
type Drift struct {
	Instrument    market.Instrument
	CurrentWeight decimal.Decimal
	TargetWeight  decimal.Decimal
	DeltaWeight   decimal.Decimal
	CurrentValue  decimal.Decimal
	TargetValue   decimal.Decimal
	DeltaValue    decimal.Decimal

	// Price is the last known price; Priced is false when there is none.
	Price        decimal.Decimal
	Priced       bool
	HeldQuantity decimal.Decimal
}

func (d Drift) IsSell() bool { return d.DeltaValue.IsNegative() }
func (d Drift) IsBuy() bool  { return d.DeltaValue.IsPositive() }

// ComputeDrift returns one record per instrument present in the snapshot or
// the target, largest absolute value move first.
func ComputeDrift(snap portfolio.Snapshot, target portfolio.Target) ([]Drift, error) {
	return ComputeDriftCapped(snap, target, portfolio.Unlimited)
}

// ComputeDriftCapped is ComputeDrift with target values sized against the
// capped (investable) equity instead of the full equity. Weights are still
// measured against full equity, so DeltaWeight is the effective target
// weight minus the current weight.
func ComputeDriftCapped(snap portfolio.Snapshot, target portfolio.Target, c portfolio.Cap) ([]Drift, error) {
	equity := snap.TotalEquity()
	if !equity.IsPositive() {
		return nil, fmt.Errorf("%w: total equity is %s", ErrInsufficientEquity, equity)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	investable := c.Apply(equity)

	seen := make(map[string]bool)
	var insts []market.Instrument
	for _, p := range snap.Positions() {
		seen[p.Instrument.Key()] = true
		insts = append(insts, p.Instrument)
	}
	for _, a := range target.Allocations() {
		if !seen[a.Instrument.Key()] {
			seen[a.Instrument.Key()] = true
			insts = append(insts, a.Instrument)
		}
	}

	out := make([]Drift, 0, len(insts))
	for _, inst := range insts {
		held := snap.HeldQuantity(inst)
		current := decimal.Zero
		if p, ok := snap.Position(inst); ok {
			current = p.MarketValue()
		}
		price, priced := snap.PriceOf(inst)

		tw := target.Weight(inst)
		tv := tw.Mul(investable)
		cw := current.Div(equity)
		effective := tw
		if c.Kind != portfolio.CapUnlimited && c.Kind != "" {
			effective = tv.Div(equity)
		}

		out = append(out, Drift{
			Instrument:    inst,
			CurrentWeight: cw,
			TargetWeight:  tw,
			DeltaWeight:   effective.Sub(cw),
			CurrentValue:  current,
			TargetValue:   tv,
			DeltaValue:    tv.Sub(current),
			Price:         price,
			Priced:        priced,
			HeldQuantity:  held,
		})
	}

	sortDrift(out)
	return out, nil
}

// sortDrift orders by descending |DeltaValue|; on ties sells come first so
// they can fund equal-sized buys, then by symbol for a stable order.
func sortDrift(ds []Drift) {
	sort.SliceStable(ds, func(i, j int) bool {
		ai, aj := ds[i].DeltaValue.Abs(), ds[j].DeltaValue.Abs()
		if c := ai.Cmp(aj); c != 0 {
			return c > 0
		}
		if si, sj := ds[i].IsSell(), ds[j].IsSell(); si != sj {
			return si
		}
		return ds[i].Instrument.Key() < ds[j].Instrument.Key()
	})
}
