package mysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func testConfig() *config.MySQLConfig {
	return &config.MySQLConfig{
		Host:            "localhost",
		Port:            3306,
		User:            "cash",
		Password:        "cash123",
		Database:        "cash_test",
		SSLMode:         "false",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 60,
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(testConfig())
	for _, want := range []string{"cash:cash123@tcp(localhost:3306)/cash_test", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
	if strings.Contains(dsn, "tls=") {
		t.Errorf("DSN %q should not enable tls", dsn)
	}

	cfg := testConfig()
	cfg.SSLMode = "skip-verify"
	if dsn := DSN(cfg); !strings.Contains(dsn, "tls=skip-verify") {
		t.Errorf("DSN %q missing tls", dsn)
	}
}

func TestLimitArg(t *testing.T) {
	if limitArg(25) != 25 {
		t.Errorf("limitArg(25) = %d", limitArg(25))
	}
	if limitArg(0) <= 1<<32 {
		t.Errorf("limitArg(0) = %d, want unbounded", limitArg(0))
	}
}

func TestNewMySQLRepository(t *testing.T) {
	t.Skip("Requires MySQL database - run manually with docker")

	ctx := context.Background()
	repo, err := NewMySQLRepository(ctx, testConfig())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}
}

func TestAccountRepository_KeepsNewestVersion(t *testing.T) {
	t.Skip("Requires MySQL database - run manually with docker")

	ctx := context.Background()
	repo, err := NewMySQLRepository(ctx, testConfig())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	now := time.Now().UTC()
	newer := &storage.AccountModel{
		ID: storage.ModelID("account", "TestPubkey1"), Pubkey: "TestPubkey1", Owner: "cash",
		Kind: "Pool", Data: []byte{2}, Version: 2, Slot: 20, UpdatedAt: now, CreatedAt: now,
	}
	older := *newer
	older.Version, older.Slot, older.Data = 1, 10, []byte{1}

	if err := repo.Accounts().Save(ctx, newer); err != nil {
		t.Fatalf("failed to save account: %v", err)
	}
	if err := repo.Accounts().Save(ctx, &older); err != nil {
		t.Fatalf("failed to save stale account: %v", err)
	}

	found, err := repo.Accounts().FindByPubkey(ctx, newer.Pubkey)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if found == nil {
		t.Fatal("account not found")
	}
	if found.Version != 2 || found.Slot != 20 {
		t.Errorf("stale write applied: version %d slot %d", found.Version, found.Slot)
	}
}

func TestTransactionRepository_FindBySigner(t *testing.T) {
	t.Skip("Requires MySQL database - run manually with docker")

	ctx := context.Background()
	repo, err := NewMySQLRepository(ctx, testConfig())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	tx := &storage.TransactionModel{
		ID:              storage.ModelID("transaction", "TestSig1"),
		Signature:       "TestSig1",
		Slot:            5,
		BlockTime:       time.Now().Unix(),
		Success:         true,
		Signers:         []string{"Lender1"},
		NumInstructions: 1,
		LogMessages:     []string{"Program log: Instruction: Lend"},
		CreatedAt:       time.Now().UTC(),
	}
	if err := repo.Transactions().SaveBatch(ctx, []*storage.TransactionModel{tx}); err != nil {
		t.Fatalf("failed to save transaction: %v", err)
	}

	found, err := repo.Transactions().FindBySigner(ctx, "Lender1", 10, 0)
	if err != nil {
		t.Fatalf("failed to find transactions: %v", err)
	}
	if len(found) != 1 || found[0].Signature != tx.Signature {
		t.Fatalf("unexpected transactions: %+v", found)
	}
}

func TestEventRepository_SaveAndFind(t *testing.T) {
	t.Skip("Requires MySQL database - run manually with docker")

	ctx := context.Background()
	repo, err := NewMySQLRepository(ctx, testConfig())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	event := &storage.EventModel{
		ID:        storage.ModelID("event", "TestSig1", "0"),
		Signature: "TestSig1",
		ProgramID: "cash",
		EventName: "Lent",
		Data:      map[string]any{"amount": int64(1200), "cash": int64(1000)},
		Slot:      5,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Events().Save(ctx, event); err != nil {
		t.Fatalf("failed to save event: %v", err)
	}

	found, err := repo.Events().FindBySignature(ctx, "TestSig1")
	if err != nil {
		t.Fatalf("failed to find events: %v", err)
	}
	if len(found) != 1 || found[0].Data["cash"] != int64(1000) {
		t.Fatalf("unexpected events: %+v", found)
	}
}
