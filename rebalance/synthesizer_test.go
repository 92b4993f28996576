package rebalance

import (
	"testing"

	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_Example(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "0", []holding{{"A", "40", "100"}, {"B", "60", "100"}}, nil)
	tgt := target(t, map[string]string{"A": "0.6", "B": "0.4"})

	p := plan(t, s, tgt, cfg("0.01", "50"))

	orders := p.Orders()
	require.Len(t, orders, 2)

	assert.Equal(t, Sell, orders[0].Side)
	assert.Equal(t, "B", orders[0].Instrument.Symbol)
	assert.True(t, d("20").Equal(orders[0].Quantity))
	assert.True(t, d("2000").Equal(orders[0].Value))

	assert.Equal(t, Buy, orders[1].Side)
	assert.Equal(t, "A", orders[1].Instrument.Symbol)
	assert.True(t, d("20").Equal(orders[1].Quantity))
	assert.True(t, d("2000").Equal(orders[1].Value))

	assert.True(t, p.ResidualCash().IsZero())
	assert.True(t, p.IsFeasible())
	assert.False(t, p.IsPartial())
	assert.True(t, d("2000").Equal(p.TotalBuyValue()))
	assert.True(t, d("2000").Equal(p.TotalSellValue()))
}

func TestSynthesize_MissingPrice(t *testing.T) {
	t.Parallel()

	t.Run("held and unpriced", func(t *testing.T) {
		t.Parallel()
		s := snapshot(t, "0", []holding{{"A", "40", "100"}, {"B", "60", "0"}}, nil)
		tgt := target(t, map[string]string{"A": "0.6", "B": "0.4"})

		p, err := Rebalance(s, tgt, portfolio.Unlimited, cfg("0.01", "50"))
		assert.ErrorIs(t, err, ErrMissingPrice)
		assert.Nil(t, p)
		assert.Contains(t, err.Error(), "B")
	})

	t.Run("held unpriced and untargeted", func(t *testing.T) {
		t.Parallel()
		s := snapshot(t, "0", []holding{{"A", "10", "100"}, {"X", "5", "0"}}, nil)
		tgt := target(t, map[string]string{"A": "1"})

		_, err := Rebalance(s, tgt, portfolio.Unlimited, DefaultConfig())
		assert.ErrorIs(t, err, ErrMissingPrice)
		assert.Contains(t, err.Error(), "X is held but has no price")
	})

	t.Run("target only", func(t *testing.T) {
		t.Parallel()
		s := snapshot(t, "1000", nil, nil)
		tgt := target(t, map[string]string{"C": "0.5"})

		_, err := Rebalance(s, tgt, portfolio.Unlimited, DefaultConfig())
		assert.ErrorIs(t, err, ErrMissingPrice)
	})

	t.Run("target only inside band", func(t *testing.T) {
		t.Parallel()
		s := snapshot(t, "1000", nil, nil)
		tgt := target(t, map[string]string{"C": "0.001"})

		p, err := Rebalance(s, tgt, portfolio.Unlimited, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, p.Empty())
	})
}

func TestSynthesize_NoTradeBand(t *testing.T) {
	t.Parallel()

	// A sits at 60.3% against 60%, B at 39.7% against 40%.
	s := snapshot(t, "0", []holding{{"A", "603", "10"}, {"B", "397", "10"}}, nil)
	tgt := target(t, map[string]string{"A": "0.6", "B": "0.4"})

	p := plan(t, s, tgt, cfg("0.005", "0"))
	assert.True(t, p.Empty())
	for _, sk := range p.Skipped() {
		assert.Equal(t, SkipWithinTolerance, sk.Reason)
	}

	p = plan(t, s, tgt, cfg("0.001", "0"))
	require.Len(t, p.Orders(), 2)
}

func TestSynthesize_SellsUnconfigured(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "0", []holding{{"A", "10", "100"}, {"X", "10.7", "100"}}, nil)
	tgt := target(t, map[string]string{"A": "0.5"})

	p := plan(t, s, tgt, DefaultConfig())

	orders := p.Orders()
	require.NotEmpty(t, orders)
	assert.Equal(t, "X", orders[0].Instrument.Symbol)
	assert.Equal(t, Sell, orders[0].Side)
	assert.True(t, d("10").Equal(orders[0].Quantity), "whole units only, rounded down")
}

func TestSynthesize_Fractional(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "1000", nil, map[string]string{"A": "300"})
	tgt := target(t, map[string]string{"A": "1"})

	whole := plan(t, s, tgt, DefaultConfig())
	require.Len(t, whole.Orders(), 1)
	assert.True(t, d("3").Equal(whole.Orders()[0].Quantity))
	assert.True(t, d("100").Equal(whole.ResidualCash()))

	c := DefaultConfig()
	c.AllowFractional = true
	frac := plan(t, s, tgt, c)
	require.Len(t, frac.Orders(), 1)
	assert.True(t, d("3.33").Equal(frac.Orders()[0].Quantity))
	assert.True(t, d("1").Equal(frac.ResidualCash()))
}

func TestSynthesize_MinOrderValue(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "0", []holding{{"A", "95", "10"}, {"B", "5", "10"}}, nil)
	tgt := target(t, map[string]string{"A": "0.9", "B": "0.1"})

	// A must sell 5 (50), B must buy 5 (50).
	p := plan(t, s, tgt, cfg("0.01", "60"))
	assert.True(t, p.Empty())
	reasons := map[string]SkipReason{}
	for _, sk := range p.Skipped() {
		reasons[sk.Instrument.Symbol] = sk.Reason
	}
	assert.Equal(t, SkipBelowMinimum, reasons["A"])
	assert.Equal(t, SkipBelowMinimum, reasons["B"])

	p = plan(t, s, tgt, cfg("0.01", "50"))
	assert.Len(t, p.Orders(), 2)
}

func TestSynthesize_CashBuffer(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "1000", nil, map[string]string{"A": "300"})
	tgt := target(t, map[string]string{"A": "1"})

	c := DefaultConfig()
	c.CashBuffer = d("200")
	p := plan(t, s, tgt, c)

	require.Len(t, p.Orders(), 1)
	assert.True(t, d("2").Equal(p.Orders()[0].Quantity))
	assert.True(t, p.IsPartial())
	assert.True(t, p.IsFeasible())
	assert.True(t, d("400").Equal(p.ResidualCash()))
}

func TestSynthesize_BuyDroppedForCash(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "100", nil, map[string]string{"A": "300"})
	tgt := target(t, map[string]string{"A": "1"})

	c := DefaultConfig()
	c.CashBuffer = d("100")

	// 100/300 rounds to zero before the cash cap is even considered.
	p := plan(t, s, tgt, c)
	assert.True(t, p.Empty())

	s = snapshot(t, "400", nil, map[string]string{"A": "300"})
	c.CashBuffer = d("200")
	p = plan(t, s, tgt, c)
	assert.True(t, p.Empty())
	assert.True(t, p.IsPartial())
	require.Len(t, p.Skipped(), 1)
	assert.Equal(t, SkipInsufficientCash, p.Skipped()[0].Reason)
	assert.True(t, p.IsFeasible())
}

func TestSynthesize_SellsFundLaterBuys(t *testing.T) {
	t.Parallel()

	// B is overweight by 3000, A underweight by 2000, C underweight by 1000.
	s := snapshot(t, "0", []holding{{"A", "20", "100"}, {"B", "70", "100"}, {"C", "10", "100"}}, nil)
	tgt := target(t, map[string]string{"A": "0.4", "B": "0.4", "C": "0.2"})

	p := plan(t, s, tgt, DefaultConfig())
	orders := p.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, "B", orders[0].Instrument.Symbol)
	assert.Equal(t, Sell, orders[0].Side)
	assert.Equal(t, "A", orders[1].Instrument.Symbol)
	assert.Equal(t, "C", orders[2].Instrument.Symbol)
	assert.True(t, p.ResidualCash().IsZero())
	assert.False(t, p.IsPartial())
}

func TestSynthesize_SellsFundLargerBuy(t *testing.T) {
	t.Parallel()

	// A needs 3000, more than either funding sell (B 2000, C 1000), so it
	// sorts ahead of both in the drift.
	s := snapshot(t, "0", []holding{{"A", "20", "100"}, {"B", "30", "100"}, {"C", "50", "100"}}, nil)
	tgt := target(t, map[string]string{"A": "0.5", "B": "0.1", "C": "0.4"})

	p := plan(t, s, tgt, DefaultConfig())
	require.Empty(t, p.Skipped())

	orders := p.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, "B", orders[0].Instrument.Symbol)
	assert.Equal(t, Sell, orders[0].Side)
	assert.True(t, d("20").Equal(orders[0].Quantity))
	assert.Equal(t, "C", orders[1].Instrument.Symbol)
	assert.Equal(t, Sell, orders[1].Side)
	assert.True(t, d("10").Equal(orders[1].Quantity))
	assert.Equal(t, "A", orders[2].Instrument.Symbol)
	assert.Equal(t, Buy, orders[2].Side)
	assert.True(t, d("30").Equal(orders[2].Quantity))

	seenBuy := false
	for _, o := range orders {
		if o.Side == Buy {
			seenBuy = true
			continue
		}
		assert.False(t, seenBuy, "%s emitted after a buy", o)
	}

	assert.True(t, d("3000").Equal(p.TotalSellValue()))
	assert.True(t, d("3000").Equal(p.TotalBuyValue()))
	assert.True(t, p.ResidualCash().IsZero())
	assert.False(t, p.IsPartial())
	assert.True(t, p.IsFeasible())
}

func TestSynthesize_Infeasible(t *testing.T) {
	t.Parallel()

	// Cash is overdrawn and the only sell that would cover it is below the
	// minimum order value.
	s := snapshot(t, "-500", []holding{{"A", "10", "100"}}, nil)
	tgt := target(t, map[string]string{"A": "1"})

	p, err := Rebalance(s, tgt, portfolio.Unlimited, cfg("0.01", "1000"))
	require.NoError(t, err)
	assert.False(t, p.IsFeasible())
	assert.True(t, d("-500").Equal(p.ResidualCash()))
	assert.Contains(t, p.Render(), "Feasible:      no")
}

func TestSynthesize_InvalidConfig(t *testing.T) {
	t.Parallel()

	s := snapshot(t, "100", nil, nil)
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"negative tolerance", func(c *Config) { c.DriftTolerance = d("-0.1") }},
		{"tolerance over one", func(c *Config) { c.DriftTolerance = d("1.5") }},
		{"negative min value", func(c *Config) { c.MinOrderValue = d("-1") }},
		{"negative buffer", func(c *Config) { c.CashBuffer = d("-1") }},
		{"too many decimals", func(c *Config) { c.AllowFractional = true; c.FractionalDecimals = 12 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := DefaultConfig()
			tt.mut(&c)
			_, err := Synthesize(nil, s, c)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewOrder(t *testing.T) {
	t.Parallel()

	o, err := NewOrder(inst("A"), Buy, d("3"), d("10.5"))
	require.NoError(t, err)
	assert.True(t, d("31.5").Equal(o.Value))
	assert.Equal(t, "BUY 3 of A @ 10.50", o.String())

	_, err = NewOrder(inst("A"), Buy, d("0"), d("10"))
	assert.Error(t, err)
	_, err = NewOrder(inst("A"), Sell, d("1"), d("0"))
	assert.Error(t, err)
	_, err = NewOrder(inst("A"), Side("HOLD"), d("1"), d("1"))
	assert.Error(t, err)
}
