package rebalance

import (
	"testing"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func inst(sym string) market.Instrument { return market.MustInstrument(sym, "") }

// holding is {symbol, quantity, price}; a price of "0" means unpriced.
type holding [3]string

func snapshot(t *testing.T, cash string, hs []holding, prices map[string]string) portfolio.Snapshot {
	t.Helper()
	ps := make([]portfolio.Position, 0, len(hs))
	for _, h := range hs {
		p, err := portfolio.NewPosition(inst(h[0]), d(h[1]), d(h[2]))
		require.NoError(t, err)
		ps = append(ps, p)
	}
	px := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		px[k] = d(v)
	}
	s, err := portfolio.NewSnapshot(d(cash), ps, px)
	require.NoError(t, err)
	return s
}

func target(t *testing.T, weights map[string]string) portfolio.Target {
	t.Helper()
	allocs := make([]portfolio.Allocation, 0, len(weights))
	for sym, w := range weights {
		allocs = append(allocs, portfolio.Allocation{Instrument: inst(sym), Weight: d(w)})
	}
	tgt, err := portfolio.NewTarget(allocs)
	require.NoError(t, err)
	return tgt
}

func cfg(tol, minValue string) Config {
	c := DefaultConfig()
	c.DriftTolerance = d(tol)
	c.MinOrderValue = d(minValue)
	return c
}

func plan(t *testing.T, s portfolio.Snapshot, tgt portfolio.Target, c Config) *Plan {
	t.Helper()
	p, err := Rebalance(s, tgt, portfolio.Unlimited, c)
	require.NoError(t, err)
	return p
}
