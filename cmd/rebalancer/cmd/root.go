package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/rebalancer/config"
	"github.com/rustyeddy/rebalancer/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rebalancer",
	Short: "Rebalance brokerage accounts toward target allocations",
	Long: `Rebalancer compares the holdings of each configured account with its
target allocation and computes the buy and sell orders that bring it back.

It provides tools for:
  - Computing rebalance plans against an Interactive Brokers gateway
  - Previewing orders with the broker's whatif check
  - Executing plans as DAY limit orders after confirmation
  - Trying plans against a paper account
  - Journaling every run to SQLite or CSV

Plans are shown without placing anything unless --execute is given.`,
	SilenceUsage: true,
}

var (
	logLevel  string
	logPretty bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "human readable log output")
}

// newLogger builds the process logger from the config section and the
// global flags, which win.
func newLogger(c config.LogConfig) zerolog.Logger {
	if logLevel != "" {
		c.Level = logLevel
	}
	if logPretty {
		c.Pretty = true
	}
	l := logger.New(logger.Config{Level: c.Level, Pretty: c.Pretty})
	logger.SetGlobalLogger(l)
	return l
}
