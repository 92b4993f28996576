// Package journal keeps a record of every rebalance run: the plan that was
// computed and what the broker said about each submitted order.
package journal

import (
	"time"

	"github.com/rustyeddy/rebalancer/pkg/id"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/shopspring/decimal"
)

// Run modes.
const (
	ModeDryRun  = "dry-run"
	ModeWhatIf  = "whatif"
	ModeExecute = "execute"
)

// Order status before anything was sent.
const StatusPlanned = "planned"

type RunRecord struct {
	RunID        string
	Account      string
	Mode         string
	Created      time.Time
	StartingCash decimal.Decimal
	Equity       decimal.Decimal
	TotalSells   decimal.Decimal
	TotalBuys    decimal.Decimal
	Residual     decimal.Decimal
	Feasible     bool
	Partial      bool
	Orders       []OrderRecord
	Submissions  []SubmissionRecord
}

type OrderRecord struct {
	Seq      int
	Symbol   string
	Exchange string
	Side     string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
	Status   string
}

// SubmissionRecord is the broker's answer to one order of a run.
type SubmissionRecord struct {
	RunID   string
	Seq     int
	Symbol  string
	Side    string
	OrderID string
	Status  string
	Message string
	Error   string
	Time    time.Time
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordSubmission(SubmissionRecord) error
	Close() error
}

// NewRunRecord captures a plan under a fresh run ID.
func NewRunRecord(account, mode string, p *rebalance.Plan, created time.Time) RunRecord {
	created = created.UTC()
	r := RunRecord{
		RunID:        id.NewAt(created),
		Account:      account,
		Mode:         mode,
		Created:      created,
		StartingCash: p.StartingCash(),
		Equity:       p.Equity(),
		TotalSells:   p.TotalSellValue(),
		TotalBuys:    p.TotalBuyValue(),
		Residual:     p.ResidualCash(),
		Feasible:     p.IsFeasible(),
		Partial:      p.IsPartial(),
	}
	for i, o := range p.Orders() {
		r.Orders = append(r.Orders, OrderRecord{
			Seq:      i,
			Symbol:   o.Instrument.Symbol,
			Exchange: o.Instrument.Exchange,
			Side:     string(o.Side),
			Quantity: o.Quantity,
			Price:    o.Price,
			Value:    o.Value,
			Status:   StatusPlanned,
		})
	}
	return r
}

// Discard is a Journal that records nothing.
type Discard struct{}

func (Discard) RecordRun(RunRecord) error               { return nil }
func (Discard) RecordSubmission(SubmissionRecord) error { return nil }
func (Discard) Close() error                            { return nil }
