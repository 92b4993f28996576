package portfolio

import (
	"testing"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewPosition(t *testing.T) {
	t.Parallel()

	vti := market.MustInstrument("VTI", "ARCA")

	p, err := NewPosition(vti, d("10"), d("250.5"))
	require.NoError(t, err)
	assert.True(t, d("2505").Equal(p.MarketValue()))
	assert.True(t, p.Priced())

	unpriced, err := NewPosition(vti, d("10"), decimal.Zero)
	require.NoError(t, err)
	assert.False(t, unpriced.Priced())
	assert.True(t, unpriced.MarketValue().IsZero())

	_, err = NewPosition(vti, d("-1"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = NewPosition(vti, d("1"), d("-1"))
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = NewPosition(market.Instrument{}, d("1"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestSnapshotEquity(t *testing.T) {
	t.Parallel()

	a := market.MustInstrument("A", "")
	b := market.MustInstrument("B", "")
	c := market.MustInstrument("C", "")

	s, err := NewSnapshot(d("500"), []Position{
		{Instrument: a, Quantity: d("40"), Price: d("100")},
		{Instrument: b, Quantity: d("60"), Price: decimal.Zero},
	}, map[string]decimal.Decimal{"C": d("20"), "A": d("999")})
	require.NoError(t, err)

	assert.True(t, d("4500").Equal(s.TotalEquity()))
	assert.True(t, d("4000").Equal(s.MarketValue()))
	assert.True(t, d("500").Equal(s.Cash()))

	px, ok := s.PriceOf(a)
	assert.True(t, ok)
	assert.True(t, d("100").Equal(px), "held price wins over supplementary price")

	_, ok = s.PriceOf(b)
	assert.False(t, ok)

	px, ok = s.PriceOf(c)
	assert.True(t, ok)
	assert.True(t, d("20").Equal(px))

	assert.True(t, d("60").Equal(s.HeldQuantity(b)))
	assert.True(t, s.HeldQuantity(c).IsZero())

	// Positions returns a copy.
	ps := s.Positions()
	ps[0].Quantity = d("1")
	assert.True(t, d("40").Equal(s.HeldQuantity(a)))
}

func TestSnapshotRejectsDuplicates(t *testing.T) {
	t.Parallel()

	a := market.MustInstrument("A", "")
	_, err := NewSnapshot(decimal.Zero, []Position{
		{Instrument: a, Quantity: d("1"), Price: d("1")},
		{Instrument: market.MustInstrument("a", "NYSE"), Quantity: d("1"), Price: d("1")},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = NewSnapshot(decimal.Zero, nil, map[string]decimal.Decimal{"X": d("-1")})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestNewTarget(t *testing.T) {
	t.Parallel()

	a := market.MustInstrument("A", "")
	b := market.MustInstrument("B", "")

	tests := []struct {
		name    string
		allocs  []Allocation
		wantErr bool
	}{
		{"empty", nil, false},
		{"full", []Allocation{{a, d("0.6")}, {b, d("0.4")}}, false},
		{"residual cash", []Allocation{{a, d("0.5")}, {b, d("0.3")}}, false},
		{"sum over one", []Allocation{{a, d("0.6")}, {b, d("0.5")}}, true},
		{"negative", []Allocation{{a, d("-0.1")}}, true},
		{"over one", []Allocation{{a, d("1.1")}}, true},
		{"duplicate", []Allocation{{a, d("0.1")}, {a, d("0.1")}}, true},
		{"no instrument", []Allocation{{market.Instrument{}, d("0.1")}}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTarget(tt.allocs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetWeights(t *testing.T) {
	t.Parallel()

	a := market.MustInstrument("A", "")
	b := market.MustInstrument("B", "")
	z := market.MustInstrument("Z", "")

	tgt, err := NewTargetFromPercents([]Allocation{{b, d("30")}, {a, d("50")}})
	require.NoError(t, err)

	assert.True(t, d("0.5").Equal(tgt.Weight(a)))
	assert.True(t, d("0.3").Equal(tgt.Weight(b)))
	assert.True(t, tgt.Weight(z).IsZero())
	assert.False(t, tgt.Contains(z))
	assert.True(t, d("0.8").Equal(tgt.Sum()))
	assert.True(t, d("0.2").Equal(tgt.CashWeight()))
	assert.NoError(t, tgt.Validate())

	allocs := tgt.Allocations()
	require.Len(t, allocs, 2)
	assert.Equal(t, "A", allocs[0].Instrument.Symbol)
	assert.Equal(t, "B", allocs[1].Instrument.Symbol)

	_, err = NewTargetFromPercents([]Allocation{{a, d("60")}, {b, d("60")}})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestParseCap(t *testing.T) {
	t.Parallel()

	equity := d("10000")

	tests := []struct {
		in      string
		kind    CapKind
		applied string
		wantErr bool
	}{
		{"", CapUnlimited, "10000", false},
		{"$2500", CapDollars, "2500", false},
		{"$1,000,000", CapDollars, "10000", false},
		{"25%", CapPercent, "2500", false},
		{"100%", CapPercent, "10000", false},
		{"150%", "", "", true},
		{"$-5", "", "", true},
		{"2500", "", "", true},
		{"$abc", "", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			c, err := ParseCap(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.True(t, d(tt.applied).Equal(c.Apply(equity)), "got %s", c.Apply(equity))
		})
	}

	assert.Equal(t, "unlimited", Unlimited.String())
	c, _ := ParseCap("$500")
	assert.Equal(t, "$500", c.String())
	c, _ = ParseCap("40%")
	assert.Equal(t, "40%", c.String())
}

func TestSnapshotWithPrices(t *testing.T) {
	t.Parallel()

	a := market.MustInstrument("A", "")
	c := market.MustInstrument("C", "")
	e := market.MustInstrument("E", "")

	s, err := NewSnapshot(d("10"), []Position{{Instrument: a, Quantity: d("1"), Price: d("5")}},
		map[string]decimal.Decimal{"C": d("3")})
	require.NoError(t, err)

	s2, err := s.WithPrices(map[string]decimal.Decimal{"E": d("7")})
	require.NoError(t, err)

	px, ok := s2.PriceOf(c)
	assert.True(t, ok)
	assert.True(t, d("3").Equal(px))
	px, ok = s2.PriceOf(e)
	assert.True(t, ok)
	assert.True(t, d("7").Equal(px))

	_, ok = s.PriceOf(e)
	assert.False(t, ok, "original snapshot is unchanged")
	assert.True(t, s.TotalEquity().Equal(s2.TotalEquity()))
}
