package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/rebalancer/broker"
	"github.com/rustyeddy/rebalancer/broker/ibkr"
	"github.com/rustyeddy/rebalancer/config"
	"github.com/rustyeddy/rebalancer/journal"
	"github.com/rustyeddy/rebalancer/rebalance"
	"github.com/rustyeddy/rebalancer/runner"
)

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Compute and optionally execute rebalance plans",
	Long: `Compute a rebalance plan for every configured account (or one, with
--account) and print it. Nothing is sent to the broker unless --whatif or
--execute is given.

Examples:
  rebalancer rebalance -f rebalancer.yaml
  rebalancer rebalance -f rebalancer.yaml -a Main --whatif
  rebalancer rebalance -f rebalancer.yaml --execute
  rebalancer rebalance -f rebalancer.yaml --paper --execute -y`,
	RunE: runRebalance,
}

var (
	rbConfigPath      string
	rbAccount         string
	rbFormat          string
	rbExecute         bool
	rbWhatIf          bool
	rbPaper           bool
	rbYes             bool
	rbHARLog          bool
	rbAllowInfeasible bool
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)

	f := rebalanceCmd.Flags()
	f.StringVarP(&rbConfigPath, "config", "f", "", "path to config file (required)")
	f.StringVarP(&rbAccount, "account", "a", "", "only rebalance this account (name or account id)")
	f.StringVar(&rbFormat, "format", "text", "plan output format: text|org")
	f.BoolVar(&rbExecute, "execute", false, "place the orders after confirmation")
	f.BoolVar(&rbWhatIf, "whatif", false, "preview the orders with the broker without placing them")
	f.BoolVar(&rbPaper, "paper", false, "use the paper broker from the config instead of the gateway")
	f.BoolVarP(&rbYes, "yes", "y", false, "do not ask for confirmation before executing")
	f.BoolVar(&rbHARLog, "har-log", false, "route gateway traffic through the HAR logging proxy")
	f.BoolVar(&rbAllowInfeasible, "allow-infeasible", false, "execute plans whose residual cash is negative")

	rebalanceCmd.MarkFlagRequired("config")
	rebalanceCmd.MarkFlagsMutuallyExclusive("execute", "whatif")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	if rbFormat != "text" && rbFormat != "org" {
		return fmt.Errorf("--format must be text or org, got %q", rbFormat)
	}

	cfg, err := config.LoadFromFile(rbConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := newLogger(cfg.Log)

	accounts := cfg.Accounts
	if rbAccount != "" {
		acct, ok := cfg.Account(rbAccount)
		if !ok {
			return fmt.Errorf("account %q not found in %s", rbAccount, rbConfigPath)
		}
		accounts = []config.Account{acct}
	}

	out := cmd.OutOrStdout()
	var jobs []runner.Job
	for _, acct := range accounts {
		job, err := buildJob(cfg, acct, log, out)
		if err != nil {
			return fmt.Errorf("%s: %w", acct.Label(), err)
		}
		jobs = append(jobs, job)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	mode := journal.ModeDryRun
	switch {
	case rbExecute:
		mode = journal.ModeExecute
	case rbWhatIf:
		mode = journal.ModeWhatIf
	}

	r := &runner.Runner{
		Config:          cfg.Rebalance.Engine(),
		Mode:            mode,
		Journal:         j,
		AllowInfeasible: rbAllowInfeasible,
		Log:             log,
	}
	if mode == journal.ModeExecute && !rbYes {
		r.Confirm = promptConfirm(cmd.InOrStdin(), out)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		fmt.Fprintf(out, "\nRebalancing account: %s\n", job.Name)
		fmt.Fprintf(out, "Portfolio cap: %s\n", job.Cap)

		o, err := r.Run(ctx, job)
		printOutcome(out, o)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildJob wires one configured account to either the gateway or the
// paper broker.
func buildJob(cfg *config.Config, acct config.Account, log zerolog.Logger, out io.Writer) (runner.Job, error) {
	c, err := acct.Cap()
	if err != nil {
		return runner.Job{}, err
	}
	job := runner.Job{Name: acct.Label(), Target: acct, Cap: c}
	if rbFormat == "org" {
		job.Reporter = journal.OrgReporter{W: out, Account: acct.Label()}
	} else {
		job.Reporter = broker.TextReporter{W: out}
	}

	if rbPaper {
		if cfg.Paper == nil {
			return runner.Job{}, fmt.Errorf("--paper needs a paper section in the config")
		}
		e, err := cfg.Paper.Engine(acct)
		if err != nil {
			return runner.Job{}, err
		}
		job.Snapshot, job.Prices, job.Exec = e, e, e
		return job, nil
	}

	base, err := cfg.BaseURL(rbHARLog)
	if err != nil {
		return runner.Job{}, err
	}
	client, err := ibkr.NewClient(ibkr.Options{
		BaseURL:     base,
		AccountID:   acct.AccountID,
		InsecureTLS: cfg.InsecureTLS,
		Logger:      log,
	})
	if err != nil {
		return runner.Job{}, err
	}
	job.Snapshot, job.Prices, job.Exec = client, client, client
	return job, nil
}

// promptConfirm asks on out and reads the answer from in. Only "yes" goes
// ahead.
func promptConfirm(in io.Reader, out io.Writer) runner.ConfirmFunc {
	rd := bufio.NewReader(in)
	return func(account string, p *rebalance.Plan) (bool, error) {
		fmt.Fprintf(out, "Confirm all %d trades for %s (yes/no): ", p.Len(), account)
		line, err := rd.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return false, err
		}
		return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
	}
}

func printOutcome(out io.Writer, o *runner.Outcome) {
	if o == nil {
		return
	}
	for _, inst := range o.Missing {
		fmt.Fprintf(out, "  ! no price for %s\n", inst)
	}
	if o.Plan != nil && o.Plan.Empty() {
		fmt.Fprintln(out, "✓ Portfolio within tolerance, nothing to trade")
	}
	if o.Declined {
		fmt.Fprintln(out, "Aborting trades.")
		return
	}
	for _, res := range o.Results {
		if !res.OK() {
			fmt.Fprintf(out, "  ✗ %s: %v\n", res.Order, res.Err)
			continue
		}
		s := res.Submission
		switch {
		case s.Preview:
			fmt.Fprintf(out, "  ✓ %s: %s\n", res.Order, s.Message)
		default:
			fmt.Fprintf(out, "  ✓ %s: %s (order %s)\n", res.Order, s.Status, s.OrderID)
		}
	}
}
