package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const (
	tableOptions  = `ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	migrationLock = "cash_schema_migrations"
)

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
				id VARCHAR(64) PRIMARY KEY,
				pubkey VARCHAR(64) UNIQUE NOT NULL,
				owner VARCHAR(64) NOT NULL,
				kind VARCHAR(32) NOT NULL DEFAULT '',
				data LONGBLOB,
				version BIGINT UNSIGNED NOT NULL,
				slot BIGINT UNSIGNED NOT NULL,
				updated_at TIMESTAMP(6) NOT NULL,
				created_at TIMESTAMP(6) NOT NULL,
				INDEX idx_accounts_owner (owner),
				INDEX idx_accounts_kind (kind, slot DESC)
			) ` + tableOptions,
		},
	},
	{
		version:     2,
		description: "transactions and instructions",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				id VARCHAR(64) PRIMARY KEY,
				signature VARCHAR(128) UNIQUE NOT NULL,
				slot BIGINT UNSIGNED NOT NULL,
				block_time BIGINT NOT NULL,
				success BOOLEAN NOT NULL,
				error_code VARCHAR(64),
				error_message TEXT,
				signers JSON NOT NULL,
				num_instructions INT NOT NULL,
				log_messages JSON,
				created_at TIMESTAMP(6) NOT NULL,
				INDEX idx_transactions_slot (slot DESC),
				INDEX idx_transactions_outcome (success, error_code)
			) ` + tableOptions,
			`CREATE TABLE IF NOT EXISTS instructions (
				id VARCHAR(64) PRIMARY KEY,
				signature VARCHAR(128) NOT NULL,
				instruction_index INT NOT NULL,
				program_id VARCHAR(64) NOT NULL,
				name VARCHAR(64) NOT NULL DEFAULT '',
				data LONGBLOB,
				accounts JSON NOT NULL,
				slot BIGINT UNSIGNED NOT NULL,
				created_at TIMESTAMP(6) NOT NULL,
				INDEX idx_instructions_signature (signature, instruction_index),
				INDEX idx_instructions_program_id (program_id, slot DESC),
				INDEX idx_instructions_name (name, slot DESC)
			) ` + tableOptions,
		},
	},
	{
		version:     3,
		description: "lending events",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id VARCHAR(64) PRIMARY KEY,
				signature VARCHAR(128) NOT NULL,
				event_index INT NOT NULL,
				program_id VARCHAR(64) NOT NULL,
				event_name VARCHAR(64) NOT NULL,
				data JSON NOT NULL,
				pool VARCHAR(64) AS (JSON_UNQUOTE(JSON_EXTRACT(data, '$.pool'))) VIRTUAL,
				slot BIGINT UNSIGNED NOT NULL,
				block_time BIGINT NOT NULL,
				created_at TIMESTAMP(6) NOT NULL,
				INDEX idx_events_signature (signature, event_index),
				INDEX idx_events_program_id (program_id, slot DESC),
				INDEX idx_events_event_name (event_name, slot DESC),
				INDEX idx_events_slot (slot),
				INDEX idx_events_pool (pool)
			) ` + tableOptions,
		},
	},
}

// Migrator applies the journal schema.
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger.With("backend", "mysql")}
}

// Up applies every pending migration while holding a named lock, so nodes
// sharing a database upgrade it once. DDL commits implicitly in MySQL; a
// failed migration is retried from its first statement on the next start.
func (m *Migrator) Up(ctx context.Context) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var locked sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 30)`, migrationLock).Scan(&locked); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if locked.Int64 != 1 {
		return fmt.Errorf("timed out waiting for migration lock %q", migrationLock)
	}
	defer conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, migrationLock)

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) `+tableOptions); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	for _, mig := range migrations {
		var count int
		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, mig.version,
		).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		for _, stmt := range mig.statements {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", mig.version, mig.description, err)
			}
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
			mig.version, mig.description,
		); err != nil {
			return err
		}
		m.logger.Info("applied migration", "version", mig.version, "description", mig.description)
	}
	return nil
}
