// Package broker defines the collaborators around the rebalance engine:
// where snapshots, prices and targets come from, and where orders go.
package broker

import (
	"context"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/shopspring/decimal"
)

// SnapshotProvider fetches the current holdings and cash of one account.
// Errors are transport or auth failures and are not retried by the caller.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context) (portfolio.Snapshot, error)
}

// PriceProvider supplies a quote for instruments the snapshot has no price
// for.
type PriceProvider interface {
	Quote(ctx context.Context, inst market.Instrument) (market.Quote, error)
}

type TargetLoader interface {
	LoadTarget() (portfolio.Target, error)
}

// Executor submits one order. It is called once per order, in plan order.
type Executor interface {
	Submit(ctx context.Context, o rebalance.Order) (Submission, error)
}

// Previewer asks the broker what an order would do without placing it.
type Previewer interface {
	Preview(ctx context.Context, o rebalance.Order) (Submission, error)
}

type Reporter interface {
	Report(p *rebalance.Plan) error
}

type Account struct {
	ID             string
	Name           string
	Currency       string
	Cash           decimal.Decimal
	NetLiquidation decimal.Decimal
}

// Submission is the broker's acknowledgement of one order.
type Submission struct {
	OrderID string
	Status  string
	Message string
	Preview bool
}
