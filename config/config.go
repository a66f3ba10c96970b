// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Payments PaymentsConfig `yaml:"payments"`
	Admin    AdminConfig    `yaml:"admin"`
	Plans    []PlanConfig   `yaml:"plans"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the ledger store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// ProviderConfig configures the STK-push payment provider.
// Use "daraja" for production or "sandbox" for local development.
type ProviderConfig struct {
	Mode   string       `yaml:"mode"` // "daraja" or "sandbox"
	Daraja DarajaConfig `yaml:"daraja,omitempty"`
}

// DarajaConfig holds the Daraja API credentials.
type DarajaConfig struct {
	BaseURL        string `yaml:"base_url"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	ShortCode      string `yaml:"short_code"`
	Passkey        string `yaml:"passkey"`
	CallbackURL    string `yaml:"callback_url"`
}

// PaymentsConfig tunes the payment lifecycle.
type PaymentsConfig struct {
	// PendingTimeout is how long a payment may sit in PENDING before the
	// sweep expires it.
	PendingTimeout time.Duration `yaml:"pending_timeout"`

	// PushTimeout bounds one provider round-trip.
	PushTimeout time.Duration `yaml:"push_timeout"`

	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AdminConfig guards the admin API. TokenHash is a bcrypt hash of the bearer
// token; an empty hash disables the admin surface. Prefer setting it through
// KODISHA_ADMIN_TOKEN_HASH: bcrypt hashes contain '$', which the file loader
// would mangle during environment expansion.
type AdminConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// PlanConfig seeds a catalog plan at startup.
type PlanConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Price         int64  `yaml:"price"` // minor currency units
	DurationDays  int    `yaml:"duration_days"`
	TotalListings int64  `yaml:"total_listings"`
	TotalFeatured int64  `yaml:"total_featured"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	KODISHA_SERVER_HOST       - Server host (default: 0.0.0.0)
//	KODISHA_SERVER_PORT       - Server port (default: 8080)
//	KODISHA_DATABASE_DRIVER   - Store driver: sqlite or memory (default: sqlite)
//	KODISHA_DATABASE_DSN      - Database path (default: kodisha.db)
//	KODISHA_PROVIDER_MODE     - Payment provider: daraja or sandbox (default: sandbox)
//	KODISHA_DARAJA_*          - Daraja credentials (see applyEnvOverrides)
//	KODISHA_ADMIN_TOKEN_HASH  - bcrypt hash of the admin bearer token
//	KODISHA_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	KODISHA_LOG_FORMAT        - Log format: json or console (default: json)
//	KODISHA_METRICS_ENABLED   - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies KODISHA_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("KODISHA_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KODISHA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KODISHA_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("KODISHA_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("KODISHA_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("KODISHA_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Provider configuration
	if v := os.Getenv("KODISHA_PROVIDER_MODE"); v != "" {
		cfg.Provider.Mode = v
	}
	if v := os.Getenv("KODISHA_DARAJA_BASE_URL"); v != "" {
		cfg.Provider.Daraja.BaseURL = v
	}
	if v := os.Getenv("KODISHA_DARAJA_CONSUMER_KEY"); v != "" {
		cfg.Provider.Daraja.ConsumerKey = v
	}
	if v := os.Getenv("KODISHA_DARAJA_CONSUMER_SECRET"); v != "" {
		cfg.Provider.Daraja.ConsumerSecret = v
	}
	if v := os.Getenv("KODISHA_DARAJA_SHORT_CODE"); v != "" {
		cfg.Provider.Daraja.ShortCode = v
	}
	if v := os.Getenv("KODISHA_DARAJA_PASSKEY"); v != "" {
		cfg.Provider.Daraja.Passkey = v
	}
	if v := os.Getenv("KODISHA_DARAJA_CALLBACK_URL"); v != "" {
		cfg.Provider.Daraja.CallbackURL = v
	}

	// Payments configuration
	if v := os.Getenv("KODISHA_PAYMENTS_PENDING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Payments.PendingTimeout = d
		}
	}
	if v := os.Getenv("KODISHA_PAYMENTS_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Payments.SweepInterval = d
		}
	}

	// Admin configuration
	if v := os.Getenv("KODISHA_ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}

	// Logging configuration
	if v := os.Getenv("KODISHA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KODISHA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("KODISHA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "kodisha.db"
	}

	if cfg.Provider.Mode == "" {
		cfg.Provider.Mode = "sandbox"
	}
	if cfg.Provider.Daraja.BaseURL == "" {
		cfg.Provider.Daraja.BaseURL = "https://sandbox.safaricom.co.ke"
	}

	if cfg.Payments.PendingTimeout == 0 {
		cfg.Payments.PendingTimeout = 2 * time.Minute
	}
	if cfg.Payments.PushTimeout == 0 {
		cfg.Payments.PushTimeout = 10 * time.Second
	}
	if cfg.Payments.SweepInterval == 0 {
		cfg.Payments.SweepInterval = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validProviders := map[string]bool{"daraja": true, "sandbox": true}
	if !validProviders[cfg.Provider.Mode] {
		return fmt.Errorf("provider.mode must be 'daraja' or 'sandbox', got %q", cfg.Provider.Mode)
	}
	if cfg.Provider.Mode == "daraja" {
		d := cfg.Provider.Daraja
		if d.ConsumerKey == "" || d.ConsumerSecret == "" {
			return fmt.Errorf("provider.daraja consumer_key and consumer_secret are required when provider.mode is 'daraja'")
		}
		if d.ShortCode == "" || d.Passkey == "" {
			return fmt.Errorf("provider.daraja short_code and passkey are required when provider.mode is 'daraja'")
		}
		if d.CallbackURL == "" {
			return fmt.Errorf("provider.daraja.callback_url is required when provider.mode is 'daraja'")
		}
	}

	for i, p := range cfg.Plans {
		if p.ID == "" {
			return fmt.Errorf("plans[%d].id is required", i)
		}
		if p.Price <= 0 {
			return fmt.Errorf("plans[%d].price must be positive", i)
		}
		if p.Price%100 != 0 {
			return fmt.Errorf("plans[%d].price must be a whole-shilling multiple of 100", i)
		}
		if p.DurationDays <= 0 {
			return fmt.Errorf("plans[%d].duration_days must be positive", i)
		}
	}

	return nil
}
