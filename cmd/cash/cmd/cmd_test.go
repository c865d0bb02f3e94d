package cmd

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/client"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "cash %s\n%s", strings.Join(args, " "), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	assert.Contains(t, out, "Cash CLI")
	assert.Contains(t, out, Version)
}

func TestWalletNewAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	out := run(t, "wallet", "new", "--out", path)

	w, err := client.WalletFromFile(path)
	require.NoError(t, err)
	assert.Contains(t, out, w.PublicKey().String())
	assert.Equal(t, w.PublicKey().String()+"\n", run(t, "wallet", "show", path))
}

func TestLendingFlow(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "ledger")
	adminFile := filepath.Join(dir, "admin.json")
	lenderFile := filepath.Join(dir, "lender.json")
	mintFile := filepath.Join(dir, "mint.json")

	run(t, "wallet", "new", "--out", adminFile)
	run(t, "wallet", "new", "--out", lenderFile)
	run(t, "token", "create-mint", "--authority", adminFile, "--out", mintFile, "--ledger", ledger)

	mintW, err := client.WalletFromFile(mintFile)
	require.NoError(t, err)
	lenderW, err := client.WalletFromFile(lenderFile)
	require.NoError(t, err)
	mint, lender := mintW.PublicKey().String(), lenderW.PublicKey().String()

	run(t, "token", "mint-to", "--authority", adminFile, "--mint", mint, "--to", lender, "--amount", "1.2", "--ledger", ledger)

	id := client.NewWallet().PublicKey()
	out := run(t, "amm", "create", "--admin", adminFile, "--id", id.String(), "--liquidity-fee", "30", "--ledger", ledger)
	deriver := authority.NewDeriver(cash.DefaultProgramID)
	ammAddr, err := deriver.Amm(id)
	require.NoError(t, err)
	amm := ammAddr.Address.String()
	assert.Contains(t, out, "AMM: "+amm)

	run(t, "pool", "create", "--payer", lenderFile, "--amm", amm, "--mint", mint, "--ledger", ledger)
	out = run(t, "lend", "--wallet", lenderFile, "--amm", amm, "--mint", mint, "--amount", "1.2", "--ledger", ledger)
	assert.Contains(t, out, "lent 1200000, minted 1000000 cash")

	var stats map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(run(t, "pool", "show", "--amm", amm, "--mint", mint, "--ledger", ledger)), &stats))
	assert.Equal(t, 1_200_000, stats["locked_principal"])
	assert.Equal(t, 1_000_000, stats["cash_supply"])

	set, err := deriver.PoolSet(ammAddr.Address, mintW.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "1.000000\n", run(t, "token", "balance", "--owner", lender, "--mint", set.CashMint.Address.String(), "--ledger", ledger))
	assert.Equal(t, "0.000000\n", run(t, "token", "balance", "--owner", lender, "--mint", mint, "--ledger", ledger))

	var addrs poolAddresses
	require.NoError(t, yaml.Unmarshal([]byte(run(t, "derive", "--amm", amm, "--mint", mint, "--ledger", ledger)), &addrs))
	assert.Equal(t, set.Pool.Address.String(), addrs.Pool.Address)
	assert.Equal(t, set.CashMint.Bump, addrs.CashMint.Bump)
}
