package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/cash"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/ledger"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/types"
)

type fixture struct {
	c      *Client
	admin  *Wallet
	faucet *Wallet
	mintA  types.Pubkey
	amm    types.Pubkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rt := runtime.New(ledger.NewMemory())
	require.NoError(t, rt.Register(token.NewProgram(nil)))
	require.NoError(t, rt.Register(cash.New(cash.DefaultProgramID)))

	f := &fixture{
		c:      NewLocal(cash.DefaultProgramID, rt),
		admin:  NewWallet(),
		faucet: NewWallet(),
	}
	mint := NewWallet()
	_, err := f.c.CreateMint(ctx, mint, cash.MintDecimals, f.faucet.PublicKey(), types.Pubkey{})
	require.NoError(t, err)
	f.mintA = mint.PublicKey()

	f.amm, _, err = f.c.CreateAmm(ctx, f.admin, NewWallet().PublicKey(), 30, 1000)
	require.NoError(t, err)
	_, err = f.c.CreatePool(ctx, f.admin, f.amm, f.mintA)
	require.NoError(t, err)
	_, err = f.c.CreateCashPool(ctx, f.admin, f.amm, f.mintA)
	require.NoError(t, err)
	return f
}

func (f *fixture) fund(t *testing.T, amount uint64) *Wallet {
	t.Helper()
	w := NewWallet()
	_, err := f.c.MintTo(context.Background(), f.faucet, f.mintA, w.PublicKey(), amount)
	require.NoError(t, err)
	return w
}

func TestClientProvisioning(t *testing.T) {
	f := newFixture(t)

	amm, err := f.c.Amm(f.amm)
	require.NoError(t, err)
	assert.Equal(t, f.admin.PublicKey(), amm.Admin)
	assert.Equal(t, uint16(30), amm.LiquidityFee)

	pool, err := f.c.Pool(f.amm, f.mintA)
	require.NoError(t, err)
	assert.Equal(t, f.mintA, pool.MintA)
	assert.Equal(t, state.PoolTypeBase, pool.PoolType)

	stats, err := f.c.PoolStats(f.amm, f.mintA)
	require.NoError(t, err)
	assert.True(t, stats.CashPoolExists)
	assert.Zero(t, stats.ReceiptSupply)
	assert.NoError(t, stats.Check())
}

func TestClientLendingFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lender := f.fund(t, 1_200)
	set, err := f.c.Deriver().PoolSet(f.amm, f.mintA)
	require.NoError(t, err)

	_, err = f.c.Lend(ctx, lender, f.amm, f.mintA, 1_200)
	require.NoError(t, err)

	cashBal, err := f.c.Balance(lender.PublicKey(), set.CashMint.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), cashBal)

	_, err = f.c.LendCash(ctx, lender, f.amm, f.mintA, 400)
	require.NoError(t, err)

	stats, err := f.c.PoolStats(f.amm, f.mintA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_200), stats.LockedPrincipal)
	assert.Equal(t, uint64(1_000), stats.CashSupply)
	assert.Equal(t, uint64(400), stats.LockedCash)
	assert.Equal(t, uint64(400), stats.ScashSupply)
	require.NoError(t, f.c.CheckInvariants(f.amm, f.mintA))

	// The cash still held in the cash pool blocks a full redeem.
	_, err = f.c.Redeem(ctx, lender, f.amm, f.mintA)
	assert.True(t, cerrors.Is(err, cerrors.ErrInsufficientBalance))

	_, err = f.c.RedeemCash(ctx, lender, f.amm, f.mintA)
	require.NoError(t, err)
	_, err = f.c.Redeem(ctx, lender, f.amm, f.mintA)
	require.NoError(t, err)

	base, err := f.c.Balance(lender.PublicKey(), f.mintA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_200), base)
	require.NoError(t, f.c.CheckInvariants(f.amm, f.mintA))
}

func TestClientTransferRejectsLockedCash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lender := f.fund(t, 120)
	set, err := f.c.Deriver().PoolSet(f.amm, f.mintA)
	require.NoError(t, err)

	_, err = f.c.Lend(ctx, lender, f.amm, f.mintA, 120)
	require.NoError(t, err)

	_, err = f.c.Transfer(ctx, lender, NewWallet().PublicKey(), set.CashMint.Address, 1)
	assert.True(t, cerrors.Is(err, cerrors.ErrAccountFrozen))

	_, err = f.c.Transfer(ctx, lender, NewWallet().PublicKey(), f.mintA, 1)
	assert.True(t, cerrors.Is(err, cerrors.ErrInsufficientBalance))
}

func TestPoolStatsUnknownPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.PoolStats(f.amm, NewWallet().PublicKey())
	assert.True(t, cerrors.Is(err, cerrors.ErrAccountNotFound))
}

func TestPoolStatsCheck(t *testing.T) {
	tests := []struct {
		name    string
		stats   PoolStats
		wantErr bool
	}{
		{"empty", PoolStats{}, false},
		{"balanced", PoolStats{LockedPrincipal: 240, ReceiptSupply: 240, CashSupply: 200, LockedCash: 50, ScashSupply: 50}, false},
		{"rounded down cash", PoolStats{LockedPrincipal: 240, ReceiptSupply: 240, CashSupply: 198}, false},
		{"receipt drift", PoolStats{LockedPrincipal: 240, ReceiptSupply: 239}, true},
		{"excess cash", PoolStats{LockedPrincipal: 120, ReceiptSupply: 120, CashSupply: 101}, true},
		{"scash drift", PoolStats{LockedCash: 5, ScashSupply: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stats.Check()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWalletFileRoundTrip(t *testing.T) {
	w := NewWallet()
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, w.SaveToFile(path))

	loaded, err := WalletFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), loaded.PublicKey())

	fromB58, err := WalletFromBase58(w.PrivateKey().String())
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), fromB58.PublicKey())

	_, err = WalletFromBase58("not-a-key")
	assert.Error(t, err)
}

func TestKeysOfSkipsNil(t *testing.T) {
	w := WalletFromPrivateKey(solana.NewWallet().PrivateKey)
	keys := keysOf(nil, w, nil)
	require.Len(t, keys, 1)
	assert.Equal(t, w.PublicKey(), keys[0].PublicKey())
}

func TestWalletFromFileRejectsMismatchedKeypair(t *testing.T) {
	a, b := NewWallet(), NewWallet()
	forged := append(append(solana.PrivateKey{}, a.PrivateKey()[:32]...), b.PrivateKey()[32:]...)
	path := filepath.Join(t.TempDir(), "keys", "forged.json")
	require.NoError(t, WalletFromPrivateKey(forged).SaveToFile(path))

	_, err := WalletFromFile(path)
	assert.ErrorContains(t, err, "does not match")
}
