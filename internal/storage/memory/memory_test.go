package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func TestAccountsKeepNewestVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	accounts := repo.Accounts()

	require.NoError(t, accounts.Save(ctx, &storage.AccountModel{Pubkey: "a", Owner: "p", Kind: "Pool", Version: 2, Slot: 2, Data: []byte{2}}))
	require.NoError(t, accounts.Save(ctx, &storage.AccountModel{Pubkey: "a", Owner: "p", Kind: "Pool", Version: 1, Slot: 1, Data: []byte{1}}))

	got, err := accounts.FindByPubkey(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, []byte{2}, got.Data)

	missing, err := accounts.FindByPubkey(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountQueries(t *testing.T) {
	ctx := context.Background()
	accounts := NewMemoryRepository().Accounts()
	require.NoError(t, accounts.SaveBatch(ctx, []*storage.AccountModel{
		{Pubkey: "a", Owner: "token", Kind: "Mint", Slot: 1},
		{Pubkey: "b", Owner: "token", Kind: "TokenAccount", Slot: 3},
		{Pubkey: "c", Owner: "cash", Kind: "Pool", Slot: 2},
	}))

	byOwner, err := accounts.FindByOwner(ctx, "token", 10, 0)
	require.NoError(t, err)
	require.Len(t, byOwner, 2)
	assert.Equal(t, "b", byOwner[0].Pubkey, "newest slot first")

	byKind, err := accounts.FindByKind(ctx, "Pool", 10, 0)
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "c", byKind[0].Pubkey)
}

func TestTransactionQueries(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryRepository().Transactions()
	require.NoError(t, txs.SaveBatch(ctx, []*storage.TransactionModel{
		{Signature: "s1", Slot: 1, Signers: []string{"alice"}, Success: true},
		{Signature: "s2", Slot: 2, Signers: []string{"bob"}, Success: true},
		{Signature: "s3", Slot: 3, Signers: []string{"alice", "bob"}, Success: false},
	}))

	recent, err := txs.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s3", recent[0].Signature)
	assert.Equal(t, "s2", recent[1].Signature)

	alice, err := txs.FindBySigner(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	paged, err := txs.FindBySigner(ctx, "alice", 10, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "s1", paged[0].Signature)

	bySlot, err := txs.FindBySlot(ctx, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, bySlot, 1)

	got, err := txs.FindBySignature(ctx, "s3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Success)
}

func TestInstructionAndEventQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Instructions().SaveBatch(ctx, []*storage.InstructionModel{
		{ID: "i1", Signature: "s1", InstructionIndex: 1, ProgramID: "cash", Name: "lend"},
		{ID: "i0", Signature: "s1", InstructionIndex: 0, ProgramID: "token", Name: "InitializeAccount"},
	}))
	ixs, err := repo.Instructions().FindBySignature(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ixs, 2)
	assert.Equal(t, 0, ixs[0].InstructionIndex)

	lends, err := repo.Instructions().FindByName(ctx, "lend", 0, 0)
	require.NoError(t, err)
	assert.Len(t, lends, 1)

	require.NoError(t, repo.Events().Save(ctx, &storage.EventModel{
		ID: "e0", Signature: "s1", ProgramID: "cash", EventName: "Lent", Slot: 4,
		Data: map[string]any{"amount": int64(1200)},
	}))
	events, err := repo.Events().FindByEventName(ctx, "Lent", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1200), events[0].Data["amount"])

	bySlot, err := repo.Events().FindBySlot(ctx, 4, 10, 0)
	require.NoError(t, err)
	assert.Len(t, bySlot, 1)

	byProgram, err := repo.Events().FindByProgramID(ctx, "token", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, byProgram)
}

func TestConnectionManagerMemory(t *testing.T) {
	ctx := context.Background()
	cm, err := storage.NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "memory"})
	require.NoError(t, err)

	repo, err := cm.Connect(ctx)
	require.NoError(t, err)
	again, err := cm.Connect(ctx)
	require.NoError(t, err)
	assert.Same(t, repo, again)

	require.NoError(t, cm.Close())
	assert.Error(t, repo.Ping(ctx))

	_, err = storage.NewConnectionManager(&config.DatabaseConfig{Enabled: false})
	assert.Error(t, err)
}

func TestOpenUnlinkedBackend(t *testing.T) {
	assert.Contains(t, storage.Registered(), storage.DatabaseTypeMemory)

	_, err := storage.Open(context.Background(), &config.DatabaseConfig{Enabled: true, Type: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not linked")
}
