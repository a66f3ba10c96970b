package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wkarimi/kodisha/adapters/clock"
	"github.com/wkarimi/kodisha/adapters/idgen"
	"github.com/wkarimi/kodisha/adapters/payment"
	"github.com/wkarimi/kodisha/adapters/sqlite"
	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale pending payments once and exit",
	Long: `Run one pass of the pending-payment expiry sweep.

Payments that have sat in PENDING longer than payments.pending_timeout
are moved to EXPIRED. The running server does this continuously; this
command exists for cron-style deployments and manual intervention.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("sweep needs database.driver=sqlite, got %q", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	svc := app.NewPaymentService(
		sqlite.NewPlanStore(db),
		sqlite.NewPaymentStore(db),
		payment.NewSandbox(), // never contacted by the sweep
		clock.Real{},
		idgen.UUID{},
		nil,
		zerolog.Nop(),
		app.PaymentConfig{PendingTimeout: cfg.Payments.PendingTimeout},
	)

	expired, err := svc.ExpirePending(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Expired %d payment(s)\n", expired)
	return nil
}
