package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/journal"
	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/rustyeddy/rebalancer/sim"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	aaa = market.MustInstrument("AAA", "ARCA")
	bbb = market.MustInstrument("BBB", "ARCA")
	ccc = market.MustInstrument("CCC", "NASDAQ")
	now = time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)
)

type testJournal struct {
	runs        []journal.RunRecord
	submissions []journal.SubmissionRecord
}

func (j *testJournal) RecordRun(r journal.RunRecord) error {
	j.runs = append(j.runs, r)
	return nil
}

func (j *testJournal) RecordSubmission(s journal.SubmissionRecord) error {
	j.submissions = append(j.submissions, s)
	return nil
}

func (j *testJournal) Close() error { return nil }

type targetFunc func() (portfolio.Target, error)

func (f targetFunc) LoadTarget() (portfolio.Target, error) { return f() }

func fiftyFifty(t *testing.T, a, b market.Instrument) broker.TargetLoader {
	t.Helper()
	tgt, err := portfolio.NewTarget([]portfolio.Allocation{
		{Instrument: a, Weight: d("0.5")},
		{Instrument: b, Weight: d("0.5")},
	})
	require.NoError(t, err)
	return targetFunc(func() (portfolio.Target, error) { return tgt, nil })
}

// paper holds AAA 10 and BBB 30 at 100 with no cash; 50/50 needs a sell
// of 10 BBB and a buy of 10 AAA.
func paper(t *testing.T) *sim.Engine {
	t.Helper()
	e := sim.NewEngine(broker.Account{ID: "P1"})
	e.SetQuote(market.Quote{Instrument: aaa, Bid: d("99.9"), Ask: d("100.1"), Last: d("100")})
	e.SetQuote(market.Quote{Instrument: bbb, Bid: d("99.9"), Ask: d("100.1"), Last: d("100")})
	require.NoError(t, e.SetHolding(aaa, d("10")))
	require.NoError(t, e.SetHolding(bbb, d("30")))
	return e
}

func job(t *testing.T, e *sim.Engine) Job {
	return Job{
		Name:     "paper",
		Snapshot: e,
		Prices:   e,
		Target:   fiftyFifty(t, aaa, bbb),
		Cap:      portfolio.Unlimited,
		Exec:     e,
	}
}

func newRunner(mode string, j journal.Journal, report *bytes.Buffer) *Runner {
	r := &Runner{
		Config:  rebalance.DefaultConfig(),
		Mode:    mode,
		Journal: j,
		Log:     zerolog.Nop(),
		Now:     func() time.Time { return now },
	}
	if report != nil {
		r.Reporter = broker.TextReporter{W: report}
	}
	return r
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	e := paper(t)
	j := &testJournal{}
	var report bytes.Buffer

	out, err := newRunner(journal.ModeDryRun, j, &report).Run(context.Background(), job(t, e))
	require.NoError(t, err)

	require.NotNil(t, out.Plan)
	assert.Equal(t, 2, out.Plan.Len())
	assert.Contains(t, report.String(), "Rebalance plan: 2 order(s)")
	assert.Empty(t, e.Fills(), "dry run sends nothing")
	assert.Empty(t, out.Results)

	require.Len(t, j.runs, 1)
	assert.Equal(t, journal.ModeDryRun, j.runs[0].Mode)
	assert.Equal(t, "paper", j.runs[0].Account)
	assert.True(t, j.runs[0].Created.Equal(now))
	assert.Empty(t, j.submissions)
}

func TestRun_Execute(t *testing.T) {
	t.Parallel()

	e := paper(t)
	j := &testJournal{}
	r := newRunner(journal.ModeExecute, j, nil)
	var asked string
	r.Confirm = func(account string, p *rebalance.Plan) (bool, error) {
		asked = account
		return true, nil
	}

	out, err := r.Run(context.Background(), job(t, e))
	require.NoError(t, err)
	assert.Equal(t, "paper", asked)
	require.Len(t, out.Results, 2)
	assert.Equal(t, rebalance.Sell, out.Results[0].Order.Side)

	snap, err := e.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.HeldQuantity(aaa).Equal(d("20")))
	assert.True(t, snap.HeldQuantity(bbb).Equal(d("20")))

	require.Len(t, j.submissions, 2)
	assert.Equal(t, j.runs[0].RunID, j.submissions[0].RunID)
	assert.Equal(t, "Filled", j.submissions[0].Status)
	assert.NotEmpty(t, j.submissions[1].OrderID)
	assert.Len(t, out.Record.Submissions, 2)
}

func TestRun_ExecuteDeclined(t *testing.T) {
	t.Parallel()

	e := paper(t)
	j := &testJournal{}
	r := newRunner(journal.ModeExecute, j, nil)
	r.Confirm = func(string, *rebalance.Plan) (bool, error) { return false, nil }

	out, err := r.Run(context.Background(), job(t, e))
	require.NoError(t, err)
	assert.True(t, out.Declined)
	assert.Empty(t, e.Fills())
	assert.Len(t, j.runs, 1, "the plan is still journaled")
}

func TestRun_ConfirmError(t *testing.T) {
	t.Parallel()

	e := paper(t)
	r := newRunner(journal.ModeExecute, nil, nil)
	r.Confirm = func(string, *rebalance.Plan) (bool, error) { return false, errors.New("stdin closed") }

	_, err := r.Run(context.Background(), job(t, e))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin closed")
	assert.Empty(t, e.Fills())
}

func TestRun_WhatIf(t *testing.T) {
	t.Parallel()

	e := paper(t)
	j := &testJournal{}
	r := newRunner(journal.ModeWhatIf, j, nil)
	r.Confirm = func(string, *rebalance.Plan) (bool, error) {
		t.Fatal("whatif does not ask for confirmation")
		return false, nil
	}

	out, err := r.Run(context.Background(), job(t, e))
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Submission.Preview)
	assert.Empty(t, e.Fills())
	assert.Len(t, j.submissions, 2)
}

func TestRun_NeedsExecutor(t *testing.T) {
	t.Parallel()

	jb := job(t, paper(t))
	jb.Exec = nil
	_, err := newRunner(journal.ModeExecute, nil, nil).Run(context.Background(), jb)
	assert.ErrorIs(t, err, ErrNoExecutor)

	_, err = newRunner(journal.ModeDryRun, nil, nil).Run(context.Background(), jb)
	assert.NoError(t, err)
}

type rejectAll struct{}

func (rejectAll) Submit(context.Context, rebalance.Order) (broker.Submission, error) {
	return broker.Submission{}, errors.New("market closed")
}

func TestRun_OrderFailures(t *testing.T) {
	t.Parallel()

	jb := job(t, paper(t))
	jb.Exec = rejectAll{}
	j := &testJournal{}

	out, err := newRunner(journal.ModeExecute, j, nil).Run(context.Background(), jb)
	assert.ErrorIs(t, err, ErrOrdersFailed)
	assert.Contains(t, err.Error(), "2 of 2")
	require.Len(t, out.Results, 2)
	require.Len(t, j.submissions, 2)
	assert.Equal(t, "market closed", j.submissions[0].Error)
}

func TestRun_PricesUnheldTarget(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{ID: "P1", Cash: d("1000")})
	e.SetQuote(market.Quote{Instrument: aaa, Last: d("100")})
	e.SetQuote(market.Quote{Instrument: ccc, Bid: d("49"), Ask: d("51")})
	require.NoError(t, e.SetHolding(aaa, d("10")))

	jb := job(t, e)
	jb.Target = fiftyFifty(t, aaa, ccc)

	out, err := newRunner(journal.ModeDryRun, nil, nil).Run(context.Background(), jb)
	require.NoError(t, err)
	assert.Empty(t, out.Missing)

	// equity 2000: AAA already at 1000, CCC needs 1000 at the 50 mid
	orders := out.Plan.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "CCC", orders[0].Instrument.Symbol)
	assert.True(t, orders[0].Quantity.Equal(d("20")))
}

func TestRun_MissingPrice(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{ID: "P1", Cash: d("1000")})
	e.SetQuote(market.Quote{Instrument: aaa, Last: d("100")})
	require.NoError(t, e.SetHolding(aaa, d("10")))

	jb := job(t, e)
	jb.Target = fiftyFifty(t, aaa, ccc)
	j := &testJournal{}

	out, err := newRunner(journal.ModeDryRun, j, nil).Run(context.Background(), jb)
	assert.ErrorIs(t, err, rebalance.ErrMissingPrice)
	require.Len(t, out.Missing, 1)
	assert.Equal(t, "CCC", out.Missing[0].Symbol)
	assert.Empty(t, j.runs)
}

func TestRunAll_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	bad := job(t, paper(t))
	bad.Name = "broken"
	bad.Target = targetFunc(func() (portfolio.Target, error) {
		return portfolio.Target{}, portfolio.ErrInvalidTarget
	})
	good := job(t, paper(t))

	j := &testJournal{}
	outs, err := newRunner(journal.ModeDryRun, j, nil).RunAll(context.Background(), []Job{bad, good})
	require.Error(t, err)
	assert.ErrorIs(t, err, portfolio.ErrInvalidTarget)
	require.Len(t, outs, 2)
	assert.Nil(t, outs[0].Plan)
	assert.NotNil(t, outs[1].Plan)
	assert.Len(t, j.runs, 1)
}

func TestRunAll_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outs, err := newRunner(journal.ModeDryRun, nil, nil).RunAll(ctx, []Job{job(t, paper(t))})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outs)
}

func TestRun_JobReporterOverrides(t *testing.T) {
	t.Parallel()

	var shared, own bytes.Buffer
	jb := job(t, paper(t))
	jb.Reporter = journal.OrgReporter{W: &own, Account: "paper", Now: func() time.Time { return now }}

	_, err := newRunner(journal.ModeDryRun, nil, &shared).Run(context.Background(), jb)
	require.NoError(t, err)
	assert.Empty(t, shared.String())
	assert.Contains(t, own.String(), "* REBALANCE: paper")
}
