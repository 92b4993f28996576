package portfolio

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Allocation is one configured instrument and its desired weight.
type Allocation struct {
	Instrument market.Instrument
	Weight     decimal.Decimal
}

// Target maps instruments to weights in [0,1] summing to at most 1. The
// remainder is the implicit cash weight.
type Target struct {
	allocs []Allocation
	index  map[string]int
}

func NewTarget(allocs []Allocation) (Target, error) {
	t := Target{
		allocs: make([]Allocation, 0, len(allocs)),
		index:  make(map[string]int, len(allocs)),
	}
	sum := decimal.Zero
	for _, a := range allocs {
		key := a.Instrument.Key()
		if key == "" {
			return Target{}, fmt.Errorf("%w: instrument is required", ErrInvalidTarget)
		}
		if _, dup := t.index[key]; dup {
			return Target{}, fmt.Errorf("%w: %s configured twice", ErrInvalidTarget, key)
		}
		if a.Weight.IsNegative() || a.Weight.GreaterThan(decimal.NewFromInt(1)) {
			return Target{}, fmt.Errorf("%w: %s weight %s outside [0,1]", ErrInvalidTarget, key, a.Weight)
		}
		sum = sum.Add(a.Weight)
		t.index[key] = len(t.allocs)
		t.allocs = append(t.allocs, a)
	}
	if sum.GreaterThan(decimal.NewFromInt(1)) {
		return Target{}, fmt.Errorf("%w: weights sum to %s", ErrInvalidTarget, sum)
	}
	sort.SliceStable(t.allocs, func(i, j int) bool {
		return t.allocs[i].Instrument.Key() < t.allocs[j].Instrument.Key()
	})
	for i, a := range t.allocs {
		t.index[a.Instrument.Key()] = i
	}
	return t, nil
}

// NewTargetFromPercents accepts weights expressed in percent (0-100).
func NewTargetFromPercents(allocs []Allocation) (Target, error) {
	scaled := make([]Allocation, len(allocs))
	for i, a := range allocs {
		scaled[i] = Allocation{Instrument: a.Instrument, Weight: a.Weight.Div(hundred)}
	}
	return NewTarget(scaled)
}

// Allocations returns a copy sorted by symbol.
func (t Target) Allocations() []Allocation {
	out := make([]Allocation, len(t.allocs))
	copy(out, t.allocs)
	return out
}

// Weight is zero for unconfigured instruments.
func (t Target) Weight(inst market.Instrument) decimal.Decimal {
	if i, ok := t.index[inst.Key()]; ok {
		return t.allocs[i].Weight
	}
	return decimal.Zero
}

func (t Target) Contains(inst market.Instrument) bool {
	_, ok := t.index[inst.Key()]
	return ok
}

func (t Target) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range t.allocs {
		sum = sum.Add(a.Weight)
	}
	return sum
}

// CashWeight is the implicit weight left in cash.
func (t Target) CashWeight() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(t.Sum())
}

// Validate re-checks the weight invariants. Targets built with NewTarget
// always pass; the zero Target is valid and empty.
func (t Target) Validate() error {
	_, err := NewTarget(t.allocs)
	return err
}
