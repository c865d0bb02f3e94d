// Package mysql stores the journal in MySQL 8 through database/sql and the
// go-sql-driver connector. The schema is migrated on connect.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func init() {
	storage.Register(storage.DatabaseTypeMySQL, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		return NewMySQLRepository(ctx, &cfg.MySQL)
	})
}

func tlsEnabled(mode string) bool {
	switch mode {
	case "", "false", "disable":
		return false
	}
	return true
}

func driverConfig(cfg *config.MySQLConfig) *mysql.Config {
	dc := mysql.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	if tlsEnabled(cfg.SSLMode) {
		dc.TLSConfig = cfg.SSLMode
	}
	return dc
}

// DSN renders the driver configuration for cfg as a connection string.
func DSN(cfg *config.MySQLConfig) string {
	return driverConfig(cfg).FormatDSN()
}

type MySQLRepository struct {
	db           *sql.DB
	accounts     *mysqlAccountRepository
	transactions *mysqlTransactionRepository
	instructions *mysqlInstructionRepository
	events       *mysqlEventRepository
}

// NewMySQLRepository connects, pings and migrates.
func NewMySQLRepository(ctx context.Context, cfg *config.MySQLConfig) (*MySQLRepository, error) {
	connector, err := mysql.NewConnector(driverConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("configure driver: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Host, err)
	}
	logger := slog.Default().With("component", "mysql")
	if err := NewMigrator(db, logger).Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &MySQLRepository{
		db:           db,
		accounts:     &mysqlAccountRepository{db: db},
		transactions: &mysqlTransactionRepository{db: db},
		instructions: &mysqlInstructionRepository{db: db},
		events:       &mysqlEventRepository{db: db},
	}, nil
}

func (r *MySQLRepository) Accounts() storage.AccountRepository         { return r.accounts }
func (r *MySQLRepository) Transactions() storage.TransactionRepository { return r.transactions }
func (r *MySQLRepository) Instructions() storage.InstructionRepository { return r.instructions }
func (r *MySQLRepository) Events() storage.EventRepository             { return r.events }

func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

var _ storage.Repository = (*MySQLRepository)(nil)
