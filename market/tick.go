package market

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// QuoteSource supplies the latest quote for an instrument.
type QuoteSource interface {
	Quote(ctx context.Context, inst Instrument) (Quote, error)
}

type Quote struct {
	Instrument Instrument
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	Last       decimal.Decimal
}

// Mark is the price used to value a holding: Last when known, otherwise
// the bid/ask midpoint, otherwise whichever side is present.
func (q Quote) Mark() decimal.Decimal {
	if q.Last.IsPositive() {
		return q.Last
	}
	switch {
	case q.Bid.IsPositive() && q.Ask.IsPositive():
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	case q.Bid.IsPositive():
		return q.Bid
	case q.Ask.IsPositive():
		return q.Ask
	}
	return decimal.Zero
}

// Limit returns the passive limit price for a side: buys rest on the bid,
// sells on the ask. Falls back to Mark when that side is missing.
func (q Quote) Limit(buy bool) decimal.Decimal {
	p := q.Ask
	if buy {
		p = q.Bid
	}
	if p.IsPositive() {
		return p
	}
	return q.Mark()
}

func (q Quote) Spread() decimal.Decimal {
	return q.Ask.Sub(q.Bid)
}

// QuoteStore is a concurrency-safe cache of quotes keyed by instrument.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Instrument.Key()] = q
}

func (qs *QuoteStore) Get(inst Instrument) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[inst.Key()]
	if !ok {
		return Quote{}, fmt.Errorf("no quote for %s", inst.Symbol)
	}
	return q, nil
}

// Quote lets a store act as a QuoteSource.
func (qs *QuoteStore) Quote(_ context.Context, inst Instrument) (Quote, error) {
	return qs.Get(inst)
}
