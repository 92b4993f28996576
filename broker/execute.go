package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/shopspring/decimal"
)

var (
	ErrInfeasiblePlan = errors.New("plan is infeasible")
	ErrNoPreview      = errors.New("executor does not support previews")
)

type ExecuteOptions struct {
	// Preview routes every order through Previewer instead of Submit.
	Preview bool
	// AllowInfeasible submits a plan even when its residual cash is negative.
	AllowInfeasible bool
	// OnResult, if set, is called after each order.
	OnResult func(Result)
}

// Result is the outcome of one order. Err is the broker's rejection, if any.
type Result struct {
	Index      int
	Order      rebalance.Order
	Submission Submission
	Err        error
}

func (r Result) OK() bool { return r.Err == nil }

// Execute submits the plan's orders one at a time in plan order. A failed
// order does not stop the rest; failures are reported per order and never
// retried. The returned error is only set when nothing could be attempted
// or the context was cancelled part way.
func Execute(ctx context.Context, p *rebalance.Plan, exec Executor, opts ExecuteOptions) ([]Result, error) {
	if p == nil {
		return nil, fmt.Errorf("execute: plan is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("execute: executor is required")
	}
	if !p.IsFeasible() && !opts.AllowInfeasible {
		return nil, fmt.Errorf("%w: residual cash %s", ErrInfeasiblePlan, market.Money(p.ResidualCash()))
	}

	submit := exec.Submit
	if opts.Preview {
		pv, ok := exec.(Previewer)
		if !ok {
			return nil, ErrNoPreview
		}
		submit = pv.Preview
	}

	orders := p.Orders()
	results := make([]Result, 0, len(orders))
	for i, o := range orders {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("execute: stopped before order %d: %w", i, err)
		}
		sub, err := submit(ctx, o)
		r := Result{Index: i, Order: o, Submission: sub, Err: err}
		results = append(results, r)
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
	}
	return results, nil
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// PriceTargets fills in prices for target instruments the snapshot cannot
// value. Instruments whose quote cannot be fetched are returned in missing
// and left unpriced; the engine decides whether that is fatal.
func PriceTargets(ctx context.Context, snap portfolio.Snapshot, target portfolio.Target, pp PriceProvider) (portfolio.Snapshot, []market.Instrument, error) {
	extra := map[string]decimal.Decimal{}
	var missing []market.Instrument

	for _, a := range target.Allocations() {
		if _, ok := snap.PriceOf(a.Instrument); ok {
			continue
		}
		if pp == nil {
			missing = append(missing, a.Instrument)
			continue
		}
		q, err := pp.Quote(ctx, a.Instrument)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return portfolio.Snapshot{}, nil, ctxErr
		}
		if err != nil || !q.Mark().IsPositive() {
			missing = append(missing, a.Instrument)
			continue
		}
		extra[a.Instrument.Key()] = q.Mark()
	}
	if len(extra) == 0 {
		return snap, missing, nil
	}
	out, err := snap.WithPrices(extra)
	if err != nil {
		return portfolio.Snapshot{}, nil, err
	}
	return out, missing, nil
}
