package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the rebalancer CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rebalancer version %s\n", version)
		fmt.Fprintln(out, "Portfolio rebalancing for Interactive Brokers accounts")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
