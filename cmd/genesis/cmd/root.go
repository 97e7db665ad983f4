package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Bridge GENESIS trading signals to a broker terminal",
	Long: `Genesis connects the GENESIS signal backend to a trading terminal.

It runs independent periodic tasks that:
  - Poll new signals and execute them as market or pending orders
  - Report each execution outcome back to the backend
  - Reconcile open positions and closed deals into trade updates
  - Apply remote close and modify commands
  - Send heartbeats and account status

A built-in paper broker lets the whole loop run without a terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
