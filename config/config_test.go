package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kodisha.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: memory\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Provider.Mode != "sandbox" {
		t.Errorf("provider mode = %s, want sandbox", cfg.Provider.Mode)
	}
	if cfg.Payments.PendingTimeout != 2*time.Minute {
		t.Errorf("pending timeout = %v", cfg.Payments.PendingTimeout)
	}
	if cfg.Payments.SweepInterval != 30*time.Second {
		t.Errorf("sweep interval = %v", cfg.Payments.SweepInterval)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
database:
  driver: sqlite
  dsn: /tmp/test.db
provider:
  mode: daraja
  daraja:
    consumer_key: ck
    consumer_secret: cs
    short_code: "174379"
    passkey: pk
    callback_url: https://example.com/api/payments/callback
payments:
  pending_timeout: 5m
  sweep_interval: 1m
plans:
  - id: starter
    name: Starter
    price: 50000
    duration_days: 30
    total_listings: 10
    total_featured: 2
logging:
  level: debug
  format: console
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Provider.Daraja.ShortCode != "174379" {
		t.Errorf("short code = %s", cfg.Provider.Daraja.ShortCode)
	}
	if cfg.Payments.PendingTimeout != 5*time.Minute {
		t.Errorf("pending timeout = %v", cfg.Payments.PendingTimeout)
	}
	if len(cfg.Plans) != 1 || cfg.Plans[0].TotalListings != 10 {
		t.Errorf("plans = %+v", cfg.Plans)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KODISHA_SERVER_PORT", "9999")
	t.Setenv("KODISHA_DATABASE_DRIVER", "memory")
	t.Setenv("KODISHA_LOG_LEVEL", "warn")
	t.Setenv("KODISHA_PAYMENTS_PENDING_TIMEOUT", "90s")
	t.Setenv("KODISHA_METRICS_ENABLED", "yes")

	path := writeConfig(t, "server:\n  port: 8080\nlogging:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override lost: port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %s", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if cfg.Payments.PendingTimeout != 90*time.Second {
		t.Errorf("pending timeout = %v", cfg.Payments.PendingTimeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics enabled override lost")
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_DARAJA_KEY", "secret-from-env")
	path := writeConfig(t, `
database:
  driver: memory
provider:
  mode: daraja
  daraja:
    consumer_key: ${TEST_DARAJA_KEY}
    consumer_secret: cs
    short_code: "174379"
    passkey: pk
    callback_url: https://example.com/cb
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Daraja.ConsumerKey != "secret-from-env" {
		t.Errorf("consumer key = %s", cfg.Provider.Daraja.ConsumerKey)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad driver",
			yaml:    "database:\n  driver: postgres\n",
			wantErr: "database.driver",
		},
		{
			name:    "bad provider mode",
			yaml:    "provider:\n  mode: stripe\n",
			wantErr: "provider.mode",
		},
		{
			name:    "daraja without credentials",
			yaml:    "provider:\n  mode: daraja\n",
			wantErr: "consumer_key",
		},
		{
			name:    "plan without id",
			yaml:    "plans:\n  - name: Starter\n    price: 100\n    duration_days: 30\n",
			wantErr: "plans[0].id",
		},
		{
			name:    "plan with zero price",
			yaml:    "plans:\n  - id: p\n    price: 0\n    duration_days: 30\n",
			wantErr: "price",
		},
		{
			name:    "plan with fractional shilling price",
			yaml:    "plans:\n  - id: p\n    price: 150\n    duration_days: 30\n",
			wantErr: "multiple of 100",
		},
		{
			name:    "plan with zero duration",
			yaml:    "plans:\n  - id: p\n    price: 100\n    duration_days: 0\n",
			wantErr: "duration_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("KODISHA_DATABASE_DRIVER", "memory")

	// Missing file falls back to the environment.
	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %s, want memory from env", cfg.Database.Driver)
	}

	// Existing file is preferred; env still overrides it.
	path := writeConfig(t, "server:\n  port: 7070\n")
	cfg, err = LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070 from file", cfg.Server.Port)
	}
}
