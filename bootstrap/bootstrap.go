// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/clock"
	"github.com/wkarimi/kodisha/adapters/hasher"
	"github.com/wkarimi/kodisha/adapters/idgen"
	"github.com/wkarimi/kodisha/adapters/memory"
	"github.com/wkarimi/kodisha/adapters/metrics"
	"github.com/wkarimi/kodisha/adapters/payment"
	"github.com/wkarimi/kodisha/adapters/sqlite"
	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/config"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
	"github.com/wkarimi/kodisha/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Payments *app.PaymentService
	Quota    *app.QuotaService
	Consume  *app.ConsumeService
	Plans    *app.PlanService
	Admin    *app.AdminService
	Export   *app.ExportService

	// Stores
	planStore  ports.PlanStore
	payStore   ports.PaymentStore
	subStore   ports.SubscriptionStore
	auditStore ports.AuditStore

	provider    ports.PaymentProvider
	sweepCancel context.CancelFunc
	holder      *config.Holder
}

// New creates and initializes the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing kodisha")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	if err := a.initStores(); err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initProvider(); err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	a.initServices()

	if err := a.seedPlans(context.Background()); err != nil {
		return nil, fmt.Errorf("seed plans: %w", err)
	}

	if err := a.initHTTPServer(); err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

func (a *App) initStores() error {
	switch a.Config.Database.Driver {
	case "memory":
		ledger := memory.NewLedger()
		a.planStore = memory.NewPlanStore()
		a.payStore = ledger.Payments()
		a.subStore = ledger.Subscriptions()
		a.auditStore = ledger.Audit()
		a.Logger.Info().Msg("using in-memory store")
	default:
		db, err := sqlite.Open(a.Config.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.planStore = sqlite.NewPlanStore(db)
		a.payStore = sqlite.NewPaymentStore(db)
		a.subStore = sqlite.NewSubscriptionStore(db)
		a.auditStore = sqlite.NewAuditStore(db)
		a.Logger.Info().Str("dsn", a.Config.Database.DSN).Msg("sqlite store ready")
	}
	return nil
}

func (a *App) initProvider() error {
	switch a.Config.Provider.Mode {
	case "daraja":
		d := a.Config.Provider.Daraja
		a.provider = payment.NewDaraja(payment.DarajaConfig{
			BaseURL:        d.BaseURL,
			ConsumerKey:    d.ConsumerKey,
			ConsumerSecret: d.ConsumerSecret,
			ShortCode:      d.ShortCode,
			Passkey:        d.Passkey,
			CallbackURL:    d.CallbackURL,
			Timeout:        a.Config.Payments.PushTimeout,
		})
		a.Logger.Info().Msg("daraja payment provider configured")
	default:
		a.provider = payment.NewSandbox()
		a.Logger.Warn().Msg("sandbox payment provider in use, not for production")
	}
	return nil
}

func (a *App) initServices() {
	clk := clock.Real{}
	ids := idgen.UUID{}

	a.Payments = app.NewPaymentService(
		a.planStore, a.payStore, a.provider, clk, ids, a.Metrics, a.Logger,
		app.PaymentConfig{
			PendingTimeout: a.Config.Payments.PendingTimeout,
			PushTimeout:    a.Config.Payments.PushTimeout,
		},
	)
	a.Quota = app.NewQuotaService(a.subStore, clk)
	a.Consume = app.NewConsumeService(a.subStore, clk, a.Metrics, a.Logger)
	a.Plans = app.NewPlanService(a.planStore, clk, ids, a.Logger)
	a.Admin = app.NewAdminService(a.planStore, a.subStore, a.auditStore, clk, ids, a.Metrics, a.Logger)
	a.Export = app.NewExportService(a.payStore, a.subStore)
}

func (a *App) seedPlans(ctx context.Context) error {
	if len(a.Config.Plans) == 0 {
		return nil
	}

	seed := make([]plan.Plan, 0, len(a.Config.Plans))
	for _, p := range a.Config.Plans {
		seed = append(seed, plan.Plan{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			DurationDays:  p.DurationDays,
			TotalListings: p.TotalListings,
			TotalFeatured: p.TotalFeatured,
			IsActive:      true,
		})
	}

	created, err := a.Plans.Seed(ctx, seed)
	if err != nil {
		return err
	}
	if created > 0 {
		a.Logger.Info().Int("count", created).Msg("seeded plans from config")
	}
	return nil
}

func (a *App) initHTTPServer() error {
	var tokenHash []byte
	if h := a.Config.Admin.TokenHash; h != "" {
		tokenHash = []byte(h)
	} else {
		a.Logger.Warn().Msg("admin token hash not set, admin API disabled")
	}

	handler := web.NewHandler(web.Deps{
		Payments:       a.Payments,
		Quota:          a.Quota,
		Consume:        a.Consume,
		Plans:          a.Plans,
		Admin:          a.Admin,
		Export:         a.Export,
		Hasher:         hasher.NewBcrypt(0),
		AdminTokenHash: tokenHash,
		Logger:         a.Logger,
	})

	addr := fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// Run starts the HTTP server and the payment sweeper and blocks until a
// termination signal arrives.
func (a *App) Run() error {
	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	go a.Payments.RunSweeper(sweepCtx, a.Config.Payments.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.sweepCancel != nil {
		a.sweepCancel()
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
