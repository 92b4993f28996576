package rebalance

import (
	"fmt"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/shopspring/decimal"
)

// SkipReason explains why a drift record produced no order.
type SkipReason string

const (
	SkipWithinTolerance  SkipReason = "within tolerance"
	SkipNoDrift          SkipReason = "no drift"
	SkipRoundsToZero     SkipReason = "rounds to zero"
	SkipBelowMinimum     SkipReason = "below minimum order value"
	SkipInsufficientCash SkipReason = "insufficient cash"
)

type Skip struct {
	Instrument market.Instrument
	Reason     SkipReason
}

// sized is a drift record that passed the band and minimum checks.
type sized struct {
	drift Drift
	qty   decimal.Decimal
}

// Synthesize turns drift records into a plan. Every sell is sized and
// emitted first so its proceeds join the cash pool before any buy is
// sized; within each side the drift order is kept.
func Synthesize(drift []Drift, snap portfolio.Snapshot, cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		places  = cfg.places()
		pool    = snap.Cash()
		used    = decimal.Zero
		freed   = decimal.Zero
		partial = false
		sells   []sized
		buys    []sized
		orders  []Order
		skipped []Skip
	)
	skip := func(inst market.Instrument, r SkipReason) {
		skipped = append(skipped, Skip{Instrument: inst, Reason: r})
	}

	for _, d := range drift {
		// Fails even when the target is zero and the delta is zero: a held
		// position without a price has an unknown weight, so the tolerance
		// band cannot be evaluated for it and the rest of the plan would be
		// sized against an understated equity.
		if !d.Priced && d.HeldQuantity.IsPositive() {
			return nil, fmt.Errorf("%w: %s is held but has no price", ErrMissingPrice, d.Instrument.Symbol)
		}
		if d.DeltaWeight.Abs().LessThan(cfg.DriftTolerance) {
			skip(d.Instrument, SkipWithinTolerance)
			continue
		}
		if d.DeltaValue.IsZero() {
			skip(d.Instrument, SkipNoDrift)
			continue
		}
		if !d.Priced {
			return nil, fmt.Errorf("%w: %s needs a %s trade of %s", ErrMissingPrice,
				d.Instrument.Symbol, sideOf(d), d.DeltaValue.Abs().StringFixed(2))
		}

		side := sideOf(d)
		qty := d.DeltaValue.Abs().Div(d.Price)
		if side == Sell {
			qty = decimal.Min(qty, d.HeldQuantity)
		}
		qty = qty.Truncate(places)
		if !qty.IsPositive() {
			skip(d.Instrument, SkipRoundsToZero)
			continue
		}
		if qty.Mul(d.Price).LessThan(cfg.MinOrderValue) {
			skip(d.Instrument, SkipBelowMinimum)
			continue
		}

		if side == Sell {
			sells = append(sells, sized{drift: d, qty: qty})
		} else {
			buys = append(buys, sized{drift: d, qty: qty})
		}
	}

	for _, s := range sells {
		o, err := NewOrder(s.drift.Instrument, Sell, s.qty, s.drift.Price)
		if err != nil {
			return nil, err
		}
		pool = pool.Add(o.Value)
		freed = freed.Add(o.Value)
		orders = append(orders, o)
	}

	for _, b := range buys {
		d, qty := b.drift, b.qty
		avail := pool.Sub(cfg.CashBuffer)
		if qty.Mul(d.Price).GreaterThan(avail) {
			partial = true
			qty = decimal.Zero
			if avail.IsPositive() {
				qty = avail.Div(d.Price).Truncate(places)
			}
			if !qty.IsPositive() || qty.Mul(d.Price).LessThan(cfg.MinOrderValue) {
				skip(d.Instrument, SkipInsufficientCash)
				continue
			}
		}

		o, err := NewOrder(d.Instrument, Buy, qty, d.Price)
		if err != nil {
			return nil, err
		}
		pool = pool.Sub(o.Value)
		used = used.Add(o.Value)
		orders = append(orders, o)
	}

	return newPlan(snap.Cash(), orders, skipped, drift, used, freed, partial), nil
}

// Rebalance runs both stages: drift against the (optionally capped) target,
// then order synthesis.
func Rebalance(snap portfolio.Snapshot, target portfolio.Target, c portfolio.Cap, cfg Config) (*Plan, error) {
	drift, err := ComputeDriftCapped(snap, target, c)
	if err != nil {
		return nil, err
	}
	return Synthesize(drift, snap, cfg)
}

func sideOf(d Drift) Side {
	if d.IsSell() {
		return Sell
	}
	return Buy
}
