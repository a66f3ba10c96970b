package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/config"
)

// NewWithHotReload builds the application around a config Holder so edits to
// the config file and SIGHUP apply the reloadable fields without a restart.
// Only plan seeds and the log level are applied live; everything else needs a
// restart (see config.NonReloadableFields).
func NewWithHotReload(path string) (*App, error) {
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"})

	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, err
	}

	a, err := New(holder.Get())
	if err != nil {
		holder.Stop()
		return nil, err
	}

	holder.OnChange(func(cfg *config.Config) {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}

		old := a.Config
		a.Config = cfg
		if len(cfg.Plans) != len(old.Plans) {
			if err := a.seedPlans(context.Background()); err != nil {
				a.Logger.Error().Err(err).Msg("plan reseed after reload failed")
			}
		}
	})

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()

	a.holder = holder
	return a, nil
}

// ValidateConfig loads and validates a config file, returning a printable
// summary.
func ValidateConfig(path string) (string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("driver=%s provider=%s plans=%d", cfg.Database.Driver, cfg.Provider.Mode, len(cfg.Plans)), nil
}
