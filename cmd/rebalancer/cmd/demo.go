package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/config"
	"github.com/rustyeddy/rebalancer/journal"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/rustyeddy/rebalancer/runner"
	"github.com/rustyeddy/rebalancer/sim"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run example rebalances against a paper account",
	Long: `Run example rebalances on an in-memory paper broker to learn how the
engine behaves. Nothing leaves the process.

Available demos:
  basic   - Two holdings drifted from a 60/40 target, executed on paper
  missing - A held position without a price stops the account

Examples:
  rebalancer demo basic
  rebalancer demo missing`,
}

var demoBasicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Rebalance a drifted two-fund portfolio",
	Long: `Starts with $10,000 split 40/60 between AAA and BBB, both at $100,
and a 60/40 target. Shows the workflow of:
  1. Seeding the paper broker
  2. Computing the drift and the plan
  3. Executing the plan sells first
  4. Reading the snapshot back`,
	RunE: runDemoBasic,
}

var demoMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "Show what happens when a holding has no price",
	RunE:  runDemoMissing,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.AddCommand(demoBasicCmd)
	demoCmd.AddCommand(demoMissingCmd)
}

func demoAccount() config.Account {
	return config.Account{
		Name:      "Demo",
		AccountID: "DU0000001",
		Allocations: []config.Allocation{
			{Symbol: "AAA", Percent: decimal.NewFromInt(60)},
			{Symbol: "BBB", Percent: decimal.NewFromInt(40)},
		},
	}
}

func demoEngine(acct config.Account, paper config.PaperConfig) (*sim.Engine, runner.Job, error) {
	e, err := paper.Engine(acct)
	if err != nil {
		return nil, runner.Job{}, err
	}
	job := runner.Job{
		Name:     acct.Label(),
		Snapshot: e,
		Prices:   e,
		Target:   acct,
		Exec:     e,
	}
	return e, job, nil
}

func demoRunner(out io.Writer) *runner.Runner {
	cfg := rebalance.DefaultConfig()
	cfg.DriftTolerance = decimal.RequireFromString("0.01")
	cfg.MinOrderValue = decimal.NewFromInt(50)
	return &runner.Runner{
		Config:   cfg,
		Mode:     journal.ModeExecute,
		Reporter: broker.TextReporter{W: out},
		Log:      newLogger(config.LogConfig{Level: "warn"}),
	}
}

func runDemoBasic(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	acct := demoAccount()
	e, job, err := demoEngine(acct, config.PaperConfig{
		Positions: []config.PaperPosition{
			{Symbol: "AAA", Quantity: decimal.NewFromInt(40), Price: decimal.NewFromInt(100)},
			{Symbol: "BBB", Quantity: decimal.NewFromInt(60), Price: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Basic Rebalance Demo ===")
	fmt.Fprintln(out, "Holdings: AAA 40 @ $100, BBB 60 @ $100, no cash")
	fmt.Fprintln(out, "Target:   AAA 60%, BBB 40%  (tolerance 1%, min order $50)")
	fmt.Fprintln(out)

	ctx := context.Background()
	outs, err := demoRunner(out).RunAll(ctx, []runner.Job{job})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, res := range outs[0].Results {
		fmt.Fprintf(out, "✓ Filled %s (%s)\n", res.Order, res.Submission.OrderID)
	}

	snap, err := e.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nAfter rebalance:")
	for _, p := range snap.Positions() {
		fmt.Fprintf(out, "  %-6s %s shares  $%s\n", p.Instrument.Symbol, p.Quantity, p.MarketValue().StringFixed(2))
	}
	fmt.Fprintf(out, "  Cash   $%s\n", snap.Cash().StringFixed(2))

	a, err := e.GetAccount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  Net liquidation $%s (%d fills)\n", a.NetLiquidation.StringFixed(2), len(e.Fills()))
	return nil
}

func runDemoMissing(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	acct := demoAccount()
	_, job, err := demoEngine(acct, config.PaperConfig{
		Cash: decimal.NewFromInt(1000),
		Positions: []config.PaperPosition{
			{Symbol: "AAA", Quantity: decimal.NewFromInt(40), Price: decimal.NewFromInt(100)},
			{Symbol: "CCC", Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Missing Price Demo ===")
	fmt.Fprintln(out, "Holdings: AAA 40 @ $100, CCC 10 with no quote, $1000 cash")
	fmt.Fprintln(out)

	_, err = demoRunner(out).RunAll(context.Background(), []runner.Job{job})
	if errors.Is(err, rebalance.ErrMissingPrice) {
		fmt.Fprintf(out, "✓ Account stopped before any order: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("expected a missing price error")
}
