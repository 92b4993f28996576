// Package runner drives one rebalance per account: fetch the snapshot,
// price the targets, compute the plan, report it, journal it and, when
// asked to, send the orders.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/journal"
	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/portfolio"
	"github.com/rustyeddy/rebalancer/rebalance"
)

var (
	ErrOrdersFailed = errors.New("orders failed")
	ErrNoExecutor   = errors.New("no executor for account")
)

// Job is one account to rebalance.
type Job struct {
	Name     string
	Snapshot broker.SnapshotProvider
	// Prices quotes target instruments the account does not hold. Optional.
	Prices broker.PriceProvider
	Target broker.TargetLoader
	Cap    portfolio.Cap
	// Exec is required for whatif and execute runs.
	Exec broker.Executor
	// Reporter overrides the runner's reporter for this account.
	Reporter broker.Reporter
}

// ConfirmFunc is asked before real orders go out. Returning false skips
// the account.
type ConfirmFunc func(account string, p *rebalance.Plan) (bool, error)

type Runner struct {
	Config          rebalance.Config
	Mode            string // journal.ModeDryRun, ModeWhatIf or ModeExecute
	Journal         journal.Journal
	Reporter        broker.Reporter
	Confirm         ConfirmFunc
	AllowInfeasible bool
	Log             zerolog.Logger
	Now             func() time.Time
}

// Outcome is what happened to one account.
type Outcome struct {
	Account  string
	Plan     *rebalance.Plan
	Record   journal.RunRecord
	Missing  []market.Instrument
	Results  []broker.Result
	Declined bool
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) journal() journal.Journal {
	if r.Journal == nil {
		return journal.Discard{}
	}
	return r.Journal
}

// Run rebalances one account. Per-order broker failures are reported in
// the outcome and as ErrOrdersFailed; every other error stops the account
// before any order is sent.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	mode := r.Mode
	if mode == "" {
		mode = journal.ModeDryRun
	}
	log := r.Log.With().Str("account", job.Name).Str("mode", mode).Logger()
	out := &Outcome{Account: job.Name}

	if job.Snapshot == nil || job.Target == nil {
		return out, fmt.Errorf("%s: snapshot provider and target are required", job.Name)
	}
	if mode != journal.ModeDryRun && job.Exec == nil {
		return out, fmt.Errorf("%s: %w", job.Name, ErrNoExecutor)
	}

	target, err := job.Target.LoadTarget()
	if err != nil {
		return out, fmt.Errorf("%s: load target: %w", job.Name, err)
	}

	log.Debug().Msg("fetching snapshot")
	snap, err := job.Snapshot.FetchSnapshot(ctx)
	if err != nil {
		return out, fmt.Errorf("%s: fetch snapshot: %w", job.Name, err)
	}

	snap, out.Missing, err = broker.PriceTargets(ctx, snap, target, job.Prices)
	if err != nil {
		return out, fmt.Errorf("%s: price targets: %w", job.Name, err)
	}
	for _, inst := range out.Missing {
		log.Warn().Str("symbol", inst.Symbol).Msg("no price for target instrument")
	}

	plan, err := rebalance.Rebalance(snap, target, job.Cap, r.Config)
	if err != nil {
		return out, fmt.Errorf("%s: %w", job.Name, err)
	}
	out.Plan = plan
	log.Info().
		Int("orders", plan.Len()).
		Int("skipped", len(plan.Skipped())).
		Str("equity", market.Money(plan.Equity())).
		Str("residual", market.Money(plan.ResidualCash())).
		Bool("feasible", plan.IsFeasible()).
		Bool("partial", plan.IsPartial()).
		Msg("plan computed")

	rep := job.Reporter
	if rep == nil {
		rep = r.Reporter
	}
	if rep != nil {
		if err := rep.Report(plan); err != nil {
			return out, fmt.Errorf("%s: report: %w", job.Name, err)
		}
	}

	out.Record = journal.NewRunRecord(job.Name, mode, plan, r.now())
	if err := r.journal().RecordRun(out.Record); err != nil {
		return out, fmt.Errorf("%s: journal: %w", job.Name, err)
	}

	if mode == journal.ModeDryRun || plan.Empty() {
		return out, nil
	}

	if mode == journal.ModeExecute && r.Confirm != nil {
		ok, err := r.Confirm(job.Name, plan)
		if err != nil {
			return out, fmt.Errorf("%s: confirm: %w", job.Name, err)
		}
		if !ok {
			log.Info().Msg("orders declined")
			out.Declined = true
			return out, nil
		}
	}

	opts := broker.ExecuteOptions{
		Preview:         mode == journal.ModeWhatIf,
		AllowInfeasible: r.AllowInfeasible,
		OnResult: func(res broker.Result) {
			r.record(log, &out.Record, res)
		},
	}
	out.Results, err = broker.Execute(ctx, plan, job.Exec, opts)
	if err != nil {
		return out, fmt.Errorf("%s: %w", job.Name, err)
	}

	if n := broker.Failed(out.Results); n > 0 {
		return out, fmt.Errorf("%s: %d of %d %w", job.Name, n, len(out.Results), ErrOrdersFailed)
	}
	return out, nil
}

// record logs and journals one broker answer.
func (r *Runner) record(log zerolog.Logger, rec *journal.RunRecord, res broker.Result) {
	sr := journal.SubmissionRecord{
		RunID:   rec.RunID,
		Seq:     res.Index,
		Symbol:  res.Order.Instrument.Symbol,
		Side:    string(res.Order.Side),
		OrderID: res.Submission.OrderID,
		Status:  res.Submission.Status,
		Message: res.Submission.Message,
		Time:    r.now().UTC(),
	}
	if res.Err != nil {
		sr.Error = res.Err.Error()
		log.Error().Err(res.Err).Str("order", res.Order.String()).Msg("order failed")
	} else {
		log.Info().Str("order", res.Order.String()).
			Str("order_id", sr.OrderID).Str("status", sr.Status).
			Msg("order sent")
	}

	rec.Submissions = append(rec.Submissions, sr)
	if err := r.journal().RecordSubmission(sr); err != nil {
		log.Error().Err(err).Msg("journal submission")
	}
}

// RunAll rebalances each account in turn. A failing account does not stop
// the others; all errors are joined.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*Outcome, error) {
	var (
		outs []*Outcome
		errs []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := r.Run(ctx, job)
		outs = append(outs, out)
		if err != nil {
			r.Log.Error().Err(err).Str("account", job.Name).Msg("rebalance failed")
			errs = append(errs, err)
		}
	}
	return outs, errors.Join(errs...)
}
