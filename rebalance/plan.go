package rebalance

import (
	"fmt"
	"io"
	"strings"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

// Epsilon absorbs rounding left over from decimal division when checking
// that residual cash is not negative.
var Epsilon = decimal.New(1, -9)

// Plan is the outcome of one rebalance computation. It is never modified
// after Synthesize returns; to correct it, recompute from a new snapshot.
type Plan struct {
	orders       []Order
	skipped      []Skip
	drift        []Drift
	startingCash decimal.Decimal
	equity       decimal.Decimal
	cashUsed     decimal.Decimal
	cashFreed    decimal.Decimal
	residual     decimal.Decimal
	feasible     bool
	partial      bool
}

func newPlan(cash decimal.Decimal, orders []Order, skipped []Skip, drift []Drift, used, freed decimal.Decimal, partial bool) *Plan {
	residual := cash.Add(freed).Sub(used)
	equity := cash
	for _, d := range drift {
		equity = equity.Add(d.CurrentValue)
	}
	p := &Plan{
		orders:       append([]Order(nil), orders...),
		skipped:      append([]Skip(nil), skipped...),
		drift:        append([]Drift(nil), drift...),
		startingCash: cash,
		equity:       equity,
		cashUsed:     used,
		cashFreed:    freed,
		residual:     residual,
		feasible:     !residual.LessThan(Epsilon.Neg()),
		partial:      partial,
	}
	return p
}

// Orders returns a copy in submission order.
func (p *Plan) Orders() []Order                 { return append([]Order(nil), p.orders...) }
func (p *Plan) Skipped() []Skip                 { return append([]Skip(nil), p.skipped...) }
func (p *Plan) Drift() []Drift                  { return append([]Drift(nil), p.drift...) }
func (p *Plan) Len() int                        { return len(p.orders) }
func (p *Plan) Empty() bool                     { return len(p.orders) == 0 }
func (p *Plan) StartingCash() decimal.Decimal   { return p.startingCash }
func (p *Plan) ResidualCash() decimal.Decimal   { return p.residual }
func (p *Plan) TotalBuyValue() decimal.Decimal  { return p.cashUsed }
func (p *Plan) TotalSellValue() decimal.Decimal { return p.cashFreed }

// Equity is the total equity of the snapshot the plan was computed from.
func (p *Plan) Equity() decimal.Decimal { return p.equity }

// IsFeasible reports whether residual cash stays non-negative. Callers must
// check it before executing the plan.
func (p *Plan) IsFeasible() bool { return p.feasible }

// IsPartial reports whether at least one buy was reduced or dropped for
// lack of cash.
func (p *Plan) IsPartial() bool { return p.partial }

// Render returns the plan as plain text. The output depends only on the
// plan's contents.
func (p *Plan) Render() string {
	var b strings.Builder

	symW, qtyW, valW := len("SYMBOL"), len("QTY"), len("VALUE")
	for _, o := range p.orders {
		symW = max(symW, len(o.Instrument.Symbol))
		qtyW = max(qtyW, len(market.Qty(o.Quantity)))
		valW = max(valW, len(market.Money(o.Value)))
	}

	fmt.Fprintf(&b, "Rebalance plan: %d order(s)\n", len(p.orders))
	if len(p.orders) > 0 {
		fmt.Fprintf(&b, "%-4s  %-*s  %*s  %10s  %*s\n", "SIDE", symW, "SYMBOL", qtyW, "QTY", "PRICE", valW, "VALUE")
		for _, o := range p.orders {
			fmt.Fprintf(&b, "%-4s  %-*s  %*s  %10s  %*s\n",
				o.Side, symW, o.Instrument.Symbol, qtyW, market.Qty(o.Quantity),
				market.Money(o.Price), valW, market.Money(o.Value))
		}
	}
	fmt.Fprintf(&b, "Starting cash: %s\n", market.Money(p.startingCash))
	fmt.Fprintf(&b, "Total sells:   %s\n", market.Money(p.cashFreed))
	fmt.Fprintf(&b, "Total buys:    %s\n", market.Money(p.cashUsed))
	fmt.Fprintf(&b, "Residual cash: %s\n", market.Money(p.residual))
	fmt.Fprintf(&b, "Feasible:      %s\n", yesNo(p.feasible))
	if p.partial {
		b.WriteString("Partial:       yes (some buys reduced for lack of cash)\n")
	}
	return b.String()
}

// WriteTo writes Render's output to w.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.Render())
	return int64(n), err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
