// Package postgres stores the journal in PostgreSQL through a pgx pool.
// The schema is migrated on connect.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func init() {
	storage.Register(storage.DatabaseTypePostgres, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		return NewPostgresRepository(ctx, &cfg.Postgres)
	})
}

// ConnString builds the pgx connection URL for cfg, escaping credentials.
func ConnString(cfg *config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

func poolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = int32(min(cfg.MaxIdleConns, int(pc.MaxConns)))
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	pc.HealthCheckPeriod = time.Minute
	return pc, nil
}

type PostgresRepository struct {
	pool         *pgxpool.Pool
	accounts     *postgresAccountRepository
	transactions *postgresTransactionRepository
	instructions *postgresInstructionRepository
	events       *postgresEventRepository
}

// NewPostgresRepository connects, pings and migrates.
func NewPostgresRepository(ctx context.Context, cfg *config.PostgresConfig) (*PostgresRepository, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Host, err)
	}

	logger := slog.Default().With("component", "postgres")
	if err := NewMigrator(pool, logger).Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgresRepository{
		pool:         pool,
		accounts:     &postgresAccountRepository{pool: pool},
		transactions: &postgresTransactionRepository{pool: pool},
		instructions: &postgresInstructionRepository{pool: pool},
		events:       &postgresEventRepository{pool: pool},
	}, nil
}

func (r *PostgresRepository) Accounts() storage.AccountRepository         { return r.accounts }
func (r *PostgresRepository) Transactions() storage.TransactionRepository { return r.transactions }
func (r *PostgresRepository) Instructions() storage.InstructionRepository { return r.instructions }
func (r *PostgresRepository) Events() storage.EventRepository             { return r.events }

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool. pgxpool reports no close error.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

var _ storage.Repository = (*PostgresRepository)(nil)
