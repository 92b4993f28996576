// Package sim is an in-memory paper broker. It serves snapshots and quotes
// from state it holds and fills orders at their estimated price, so a
// rebalance can be run end to end without a gateway.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/pkg/id"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/shopspring/decimal"
)

var (
	_ broker.SnapshotProvider = (*Engine)(nil)
	_ broker.PriceProvider    = (*Engine)(nil)
	_ broker.Executor         = (*Engine)(nil)
	_ broker.Previewer        = (*Engine)(nil)
)

type Engine struct {
	mu       sync.Mutex
	acct     broker.Account
	quotes   *market.QuoteStore
	holdings map[string]*Holding
	order    []string // holding keys in insertion order
	fills    []Fill
	now      func() time.Time
}

func NewEngine(acct broker.Account) *Engine {
	return &Engine{
		acct:     acct,
		quotes:   market.NewQuoteStore(),
		holdings: make(map[string]*Holding),
		now:      time.Now,
	}
}

func (e *Engine) Quotes() *market.QuoteStore { return e.quotes }

func (e *Engine) SetQuote(q market.Quote) {
	e.quotes.Set(q)
}

// SetHolding replaces the quantity held of inst.
func (e *Engine) SetHolding(inst market.Instrument, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("sim: %s quantity %s is negative", inst.Symbol, qty)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.holdingLocked(inst).Quantity = qty
	return nil
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct := e.acct
	acct.NetLiquidation = acct.Cash.Add(e.marketValueLocked())
	return acct, nil
}

// FetchSnapshot values every holding at its quote's mark; holdings without
// a quote are reported unpriced.
func (e *Engine) FetchSnapshot(ctx context.Context) (portfolio.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions := make([]portfolio.Position, 0, len(e.order))
	for _, key := range e.order {
		h := e.holdings[key]
		if h.Quantity.IsZero() {
			continue
		}
		price := decimal.Zero
		if q, err := e.quotes.Get(h.Instrument); err == nil {
			price = q.Mark()
		}
		p, err := portfolio.NewPosition(h.Instrument, h.Quantity, price)
		if err != nil {
			return portfolio.Snapshot{}, err
		}
		positions = append(positions, p)
	}
	return portfolio.NewSnapshot(e.acct.Cash, positions, nil)
}

func (e *Engine) Quote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	return e.quotes.Get(inst)
}

// Submit fills o immediately at its estimated price.
func (e *Engine) Submit(ctx context.Context, o rebalance.Order) (broker.Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(o); err != nil {
		return broker.Submission{}, err
	}

	h := e.holdingLocked(o.Instrument)
	if o.Side == rebalance.Buy {
		e.acct.Cash = e.acct.Cash.Sub(o.Value)
		h.Quantity = h.Quantity.Add(o.Quantity)
	} else {
		e.acct.Cash = e.acct.Cash.Add(o.Value)
		h.Quantity = h.Quantity.Sub(o.Quantity)
	}

	f := Fill{
		ID:         id.New(),
		Instrument: o.Instrument,
		Side:       o.Side,
		Quantity:   o.Quantity,
		Price:      o.Price,
		Time:       e.now(),
	}
	e.fills = append(e.fills, f)

	return broker.Submission{OrderID: f.ID, Status: "Filled"}, nil
}

// Preview checks o the way Submit would without changing any state.
func (e *Engine) Preview(ctx context.Context, o rebalance.Order) (broker.Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(o); err != nil {
		return broker.Submission{}, err
	}
	return broker.Submission{
		Status:  "PreSubmitted",
		Message: fmt.Sprintf("would %s", o),
		Preview: true,
	}, nil
}

// Fills returns a copy of every fill so far.
func (e *Engine) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Fill(nil), e.fills...)
}

func (e *Engine) checkLocked(o rebalance.Order) error {
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("sim: %s quantity must be positive", o.Instrument.Symbol)
	}
	switch o.Side {
	case rebalance.Buy:
		if o.Value.GreaterThan(e.acct.Cash) {
			return fmt.Errorf("sim: insufficient cash for %s: need %s, have %s",
				o, market.Money(o.Value), market.Money(e.acct.Cash))
		}
	case rebalance.Sell:
		held := decimal.Zero
		if h, ok := e.holdings[o.Instrument.Key()]; ok {
			held = h.Quantity
		}
		if o.Quantity.GreaterThan(held) {
			return fmt.Errorf("sim: cannot %s: only %s held", o, market.Qty(held))
		}
	default:
		return fmt.Errorf("sim: unknown side %q", o.Side)
	}
	return nil
}

func (e *Engine) holdingLocked(inst market.Instrument) *Holding {
	key := inst.Key()
	h, ok := e.holdings[key]
	if !ok {
		h = &Holding{Instrument: inst}
		e.holdings[key] = h
		e.order = append(e.order, key)
	}
	return h
}

func (e *Engine) marketValueLocked() decimal.Decimal {
	total := decimal.Zero
	for _, h := range e.holdings {
		if q, err := e.quotes.Get(h.Instrument); err == nil {
			total = total.Add(h.Quantity.Mul(q.Mark()))
		}
	}
	return total
}
