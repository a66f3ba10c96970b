package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kodisha",
	Short: "Subscription and quota engine for the rental listing marketplace",
	Long: `Kodisha sells listing packages over mobile money and enforces the
quotas they grant.

It records every payment attempt, grants subscriptions on confirmed
payments, aggregates quota across a subscriber's subscriptions, and is
the only legal gate for spending a quota unit.

Quick start:
  kodisha serve     # Start the API server

Management:
  kodisha plans     # Inspect and seed the plan catalog
  kodisha sweep     # Expire stale pending payments once
  kodisha token     # Hash an admin API token
  kodisha validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "kodisha.yaml", "config file path")
}
