package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if _, err := cfg.ProgramID(); err != nil {
		t.Fatalf("default program id: %v", err)
	}
	if !cfg.Program.RejectExistingLending {
		t.Error("relending should be rejected by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cash.yaml")
	body := `
program:
  reject_existing_lending: false
ledger:
  backend: leveldb
  path: /tmp/cash-ledger
log:
  level: debug
  format: json
database:
  enabled: true
  type: postgres
  postgres:
    host: db
    port: 6543
server:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWith(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Program.RejectExistingLending {
		t.Error("reject_existing_lending not loaded")
	}
	if cfg.Ledger.Backend != "leveldb" || cfg.Ledger.Path != "/tmp/cash-ledger" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Database.Postgres.Host != "db" || cfg.Database.Postgres.Port != 6543 {
		t.Errorf("postgres = %+v", cfg.Database.Postgres)
	}
	// Unset keys keep their defaults.
	if cfg.Database.Postgres.User != "postgres" {
		t.Errorf("postgres user = %q, want default", cfg.Database.Postgres.User)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CASH_LOG_LEVEL", "warn")
	t.Setenv("CASH_SERVER_ADDR", ":7070")

	v := viper.New()
	v.AddConfigPath(t.TempDir())
	cfg, err := LoadWith(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("server addr = %q, want :7070", cfg.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad program id", func(c *Config) { c.Program.ID = "nope" }},
		{"bad ledger backend", func(c *Config) { c.Ledger.Backend = "redis" }},
		{"leveldb without path", func(c *Config) { c.Ledger.Backend = "leveldb"; c.Ledger.Path = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad database type", func(c *Config) { c.Database.Enabled = true; c.Database.Type = "sqlite" }},
		{"zero buffer", func(c *Config) { c.Pipeline.ChannelBufferSize = 0 }},
		{"negative journal batch", func(c *Config) { c.Pipeline.JournalBatchSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
