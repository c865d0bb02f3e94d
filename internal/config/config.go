package config

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Program  ProgramConfig  `mapstructure:"program"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ProgramConfig selects the lending program deployment.
type ProgramConfig struct {
	ID                    string `mapstructure:"id"`
	RejectExistingLending bool   `mapstructure:"reject_existing_lending"`
}

// LedgerConfig holds account store configuration
type LedgerConfig struct {
	Backend string `mapstructure:"backend"` // memory or leveldb
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DatabaseConfig holds journal storage configuration
type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"` // memory, postgres, mongodb or mysql
	Postgres PostgresConfig `mapstructure:"postgres"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

type MySQLConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

// PipelineConfig tunes the journal pipeline.
type PipelineConfig struct {
	ChannelBufferSize    int `mapstructure:"channel_buffer_size"`
	MetricsFlushInterval int `mapstructure:"metrics_flush_interval"` // in seconds
	// JournalBatchSize buffers journal writes and saves them in batches of
	// this size. Zero writes every update through.
	JournalBatchSize int `mapstructure:"journal_batch_size"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Program: ProgramConfig{
			ID:                    "EYCdeLWKH7F5JejES1aPvGBqFaT9S1e2roEThq1y9FAR",
			RejectExistingLending: true,
		},
		Ledger: LedgerConfig{
			Backend: "memory",
			Path:    "data/ledger",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Enabled: false,
			Type:    "memory",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "postgres",
				Database:        "cash",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "cash",
				MaxPoolSize:    10,
				MinPoolSize:    1,
				ConnectTimeout: 10,
			},
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				User:            "root",
				Database:        "cash",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 300,
			},
		},
		Pipeline: PipelineConfig{
			ChannelBufferSize:    1000,
			MetricsFlushInterval: 5,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "cash",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith loads configuration through v, which may already carry flag
// bindings.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".cash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("CASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about, so the
// environment overridable keys are declared up front.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"program.id", "program.reject_existing_lending",
		"ledger.backend", "ledger.path",
		"log.level", "log.format",
		"database.enabled", "database.type",
		"database.postgres.host", "database.postgres.port", "database.postgres.user",
		"database.postgres.password", "database.postgres.database",
		"database.mongodb.uri", "database.mongodb.database",
		"database.mysql.host", "database.mysql.port", "database.mysql.user",
		"database.mysql.password", "database.mysql.database",
		"pipeline.channel_buffer_size", "pipeline.journal_batch_size",
		"metrics.enabled", "metrics.namespace",
		"server.addr",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if _, err := c.ProgramID(); err != nil {
		return fmt.Errorf("invalid program.id %q: %w", c.Program.ID, err)
	}

	switch c.Ledger.Backend {
	case "memory":
	case "leveldb":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the leveldb backend")
		}
	default:
		return fmt.Errorf("unsupported ledger backend: %s", c.Ledger.Backend)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "memory", "postgres", "mongodb", "mysql":
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
	}

	if c.Pipeline.ChannelBufferSize <= 0 {
		return fmt.Errorf("pipeline.channel_buffer_size must be positive")
	}
	if c.Pipeline.JournalBatchSize < 0 {
		return fmt.Errorf("pipeline.journal_batch_size must not be negative")
	}
	return nil
}

// ProgramID parses the configured program address.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.Program.ID)
}
