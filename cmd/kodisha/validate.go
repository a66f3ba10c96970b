package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wkarimi/kodisha/bootstrap"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := bootstrap.ValidateConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		fmt.Printf("Configuration valid: %s\n", summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
