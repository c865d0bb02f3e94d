package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLock keys the advisory lock that serializes schema upgrades when
// several nodes share one database.
const migrationLock = 0x63617368

type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "account snapshots",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				pubkey TEXT UNIQUE NOT NULL,
				owner TEXT NOT NULL,
				kind TEXT NOT NULL DEFAULT '',
				data BYTEA,
				version BIGINT NOT NULL,
				slot BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner)`,
			`CREATE INDEX IF NOT EXISTS idx_accounts_kind ON accounts(kind, slot DESC)`,
		},
	},
	{
		version:     2,
		description: "transactions and instructions",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				signature TEXT UNIQUE NOT NULL,
				slot BIGINT NOT NULL,
				block_time BIGINT NOT NULL,
				success BOOLEAN NOT NULL,
				error_code TEXT,
				error_message TEXT,
				signers TEXT[] NOT NULL,
				num_instructions INT NOT NULL,
				log_messages TEXT[],
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_slot ON transactions(slot DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_signers ON transactions USING GIN(signers)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_failed ON transactions(error_code) WHERE NOT success`,
			`CREATE TABLE IF NOT EXISTS instructions (
				id TEXT PRIMARY KEY,
				signature TEXT NOT NULL,
				instruction_index INT NOT NULL,
				program_id TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				data BYTEA,
				accounts TEXT[] NOT NULL,
				slot BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_instructions_signature ON instructions(signature, instruction_index)`,
			`CREATE INDEX IF NOT EXISTS idx_instructions_program_id ON instructions(program_id, slot DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_instructions_name ON instructions(name, slot DESC)`,
		},
	},
	{
		version:     3,
		description: "lending events",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				signature TEXT NOT NULL,
				event_index INT NOT NULL,
				program_id TEXT NOT NULL,
				event_name TEXT NOT NULL,
				data JSONB NOT NULL,
				slot BIGINT NOT NULL,
				block_time BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_signature ON events(signature, event_index)`,
			`CREATE INDEX IF NOT EXISTS idx_events_program_id ON events(program_id, slot DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_events_event_name ON events(event_name, slot DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_events_slot ON events(slot)`,
			// Lent, Redeemed and PoolCreated carry the pool address.
			`CREATE INDEX IF NOT EXISTS idx_events_pool ON events((data->>'pool')) WHERE data ? 'pool'`,
		},
	},
}

// Migrator applies the journal schema.
type Migrator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{pool: pool, logger: logger.With("backend", "postgres")}
}

// Up applies every pending migration. Each migration commits on its own so
// a failure leaves the earlier ones in place.
func (m *Migrator) Up(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, mig := range migrations {
		applied, err := m.apply(ctx, mig)
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.version, mig.description, err)
		}
		if applied {
			m.logger.Info("applied migration", "version", mig.version, "description", mig.description)
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
			return err
		}
		var done bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.version,
		).Scan(&done); err != nil {
			return err
		}
		if done {
			return nil
		}
		for _, stmt := range mig.statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			mig.version, mig.description,
		); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// Version returns the highest applied migration, 0 on a fresh database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}
