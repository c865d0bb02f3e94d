package node

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/decoder"
	"github.com/lugondev/go-cash/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func journalConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Enabled = true
	cfg.Database.Type = "memory"
	cfg.Metrics.Namespace = "cash_test"
	return cfg
}

func TestNodeJournalsLending(t *testing.T) {
	ctx := context.Background()
	n, err := New(ctx, journalConfig(), quietLogger())
	require.NoError(t, err)
	n.Start(ctx)
	defer n.Close()

	c := n.Client()
	admin, faucet, mint := client.NewWallet(), client.NewWallet(), client.NewWallet()
	_, err = c.CreateMint(ctx, mint, cash.MintDecimals, faucet.PublicKey(), types.Pubkey{})
	require.NoError(t, err)
	amm, _, err := c.CreateAmm(ctx, admin, client.NewWallet().PublicKey(), 30, 1000)
	require.NoError(t, err)
	_, err = c.CreatePool(ctx, admin, amm, mint.PublicKey())
	require.NoError(t, err)

	lender := client.NewWallet()
	_, err = c.MintTo(ctx, faucet, mint.PublicKey(), lender.PublicKey(), 1_200)
	require.NoError(t, err)
	receipt, err := c.Lend(ctx, lender, amm, mint.PublicKey(), 1_200)
	require.NoError(t, err)
	require.NoError(t, receipt.Err)

	// A failed lend is journaled without events.
	failed, err := c.Lend(ctx, lender, amm, mint.PublicKey(), 1)
	require.Error(t, err)
	require.NotNil(t, failed)

	repo := n.Repository()
	require.NotNil(t, repo)
	require.Eventually(t, func() bool {
		tx, err := repo.Transactions().FindBySignature(ctx, failed.Signature.String())
		return err == nil && tx != nil
	}, 5*time.Second, 10*time.Millisecond)

	events, err := repo.Events().FindBySignature(ctx, receipt.Signature.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, cash.EventLent, events[0].EventName)
	assert.Equal(t, int64(1_200), events[0].Data["amount"])
	assert.Equal(t, int64(1_000), events[0].Data["cash"])

	ixs, err := repo.Instructions().FindByName(ctx, cash.InstructionLend, 0, 0)
	require.NoError(t, err)
	assert.Len(t, ixs, 2)

	tx, err := repo.Transactions().FindBySignature(ctx, failed.Signature.String())
	require.NoError(t, err)
	assert.False(t, tx.Success)
	assert.Equal(t, "INSUFFICIENT_BALANCE", tx.ErrorCode)

	pools, err := repo.Accounts().FindByKind(ctx, decoder.KindPool, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func TestNodeBatchedJournalFlushesOnClose(t *testing.T) {
	ctx := context.Background()
	cfg := journalConfig()
	cfg.Pipeline.JournalBatchSize = 100

	n, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	n.Start(ctx)

	c := n.Client()
	admin, faucet, mint := client.NewWallet(), client.NewWallet(), client.NewWallet()
	_, err = c.CreateMint(ctx, mint, cash.MintDecimals, faucet.PublicKey(), types.Pubkey{})
	require.NoError(t, err)
	amm, _, err := c.CreateAmm(ctx, admin, client.NewWallet().PublicKey(), 30, 1000)
	require.NoError(t, err)
	_, err = c.CreatePool(ctx, admin, amm, mint.PublicKey())
	require.NoError(t, err)
	lender := client.NewWallet()
	_, err = c.MintTo(ctx, faucet, mint.PublicKey(), lender.PublicKey(), 600)
	require.NoError(t, err)
	receipt, err := c.Lend(ctx, lender, amm, mint.PublicKey(), 600)
	require.NoError(t, err)

	require.NoError(t, n.Close())

	repo := n.Repository()
	tx, err := repo.Transactions().FindBySignature(ctx, receipt.Signature.String())
	require.NoError(t, err)
	require.NotNil(t, tx)
	events, err := repo.Events().FindBySignature(ctx, receipt.Signature.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(500), events[0].Data["cash"])

	pools, err := repo.Accounts().FindByKind(ctx, decoder.KindPool, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func TestNodeWithoutJournal(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false

	n, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	n.Start(ctx)

	assert.Nil(t, n.Repository())
	assert.Nil(t, n.Prometheus())

	_, _, err = n.Client().CreateAmm(ctx, client.NewWallet(), client.NewWallet().PublicKey(), 0, 0)
	require.NoError(t, err)
	require.NoError(t, n.Close())
	assert.Zero(t, n.Pending())
}

func TestNodeLevelDBLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Ledger.Backend = "leveldb"
	cfg.Ledger.Path = t.TempDir()

	n, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	n.Start(ctx)
	admin := client.NewWallet()
	amm, _, err := n.Client().CreateAmm(ctx, admin, client.NewWallet().PublicKey(), 25, 500)
	require.NoError(t, err)
	slot := n.Ledger().Slot()
	require.NoError(t, n.Close())

	reopened, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	reopened.Start(ctx)
	defer reopened.Close()

	assert.Equal(t, slot, reopened.Ledger().Slot())
	record, err := reopened.Client().Amm(amm)
	require.NoError(t, err)
	assert.Equal(t, admin.PublicKey(), record.Admin)
	assert.Equal(t, uint16(25), record.LiquidityFee)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Program.ID = "not-a-key"
	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}
