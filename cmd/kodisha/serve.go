package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wkarimi/kodisha/bootstrap"
	"github.com/wkarimi/kodisha/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the kodisha API server.

The server will:
  - Load configuration from kodisha.yaml (or --config)
  - Or load configuration from KODISHA_* environment variables
  - Open the ledger database and run migrations
  - Serve the payment, quota and admin APIs
  - Run the pending-payment expiry sweep in the background

Environment variables (for Docker deployments):
  KODISHA_DATABASE_DSN      - Database path (default: kodisha.db)
  KODISHA_SERVER_PORT       - Server port (default: 8080)
  KODISHA_PROVIDER_MODE     - Payment provider: daraja or sandbox
  KODISHA_ADMIN_TOKEN_HASH  - bcrypt hash of the admin bearer token
  KODISHA_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  kodisha serve
  kodisha serve --config /etc/kodisha/config.yaml
  kodisha serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return loadErr
		}
		app, err = bootstrap.New(cfg)
	}
	if err != nil {
		return err
	}

	return app.Run()
}
