package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/types"
)

type fixture struct {
	srv    *httptest.Server
	node   *node.Node
	admin  *client.Wallet
	faucet *client.Wallet
	mint   types.Pubkey
	amm    types.Pubkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Database.Enabled = true
	cfg.Database.Type = "memory"
	n, err := node.New(ctx, cfg, logger)
	require.NoError(t, err)
	n.Start(ctx)
	t.Cleanup(func() { n.Close() })

	f := &fixture{node: n, admin: client.NewWallet(), faucet: client.NewWallet()}
	c := n.Client()
	mint := client.NewWallet()
	_, err = c.CreateMint(ctx, mint, cash.MintDecimals, f.faucet.PublicKey(), types.Pubkey{})
	require.NoError(t, err)
	f.mint = mint.PublicKey()
	f.amm, _, err = c.CreateAmm(ctx, f.admin, client.NewWallet().PublicKey(), 30, 1000)
	require.NoError(t, err)
	_, err = c.CreatePool(ctx, f.admin, f.amm, f.mint)
	require.NoError(t, err)

	f.srv = httptest.NewServer(New(n, cfg.Server, logger).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) submit(t *testing.T, tx *runtime.Transaction, out any) int {
	t.Helper()
	encoded, err := tx.ToBase64()
	require.NoError(t, err)
	body, err := json.Marshal(submitRequest{Transaction: encoded})
	require.NoError(t, err)

	resp, err := http.Post(f.srv.URL+"/v1/transactions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func (f *fixture) lendTx(t *testing.T, lender *client.Wallet, amount uint64) *runtime.Transaction {
	t.Helper()
	accts, err := cash.DeriveLendAccounts(f.node.Client().Deriver(), f.amm, f.mint, lender.PublicKey())
	require.NoError(t, err)
	tx := runtime.NewTransaction(uint64(time.Now().UnixNano()), cash.NewLendInstruction(cash.DefaultProgramID, accts, amount))
	require.NoError(t, tx.Sign(lender.PrivateKey()))
	return tx
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["journal"])
}

func TestSubmitLendAndReadBack(t *testing.T) {
	f := newFixture(t)
	lender := client.NewWallet()
	_, err := f.node.Client().MintTo(context.Background(), f.faucet, f.mint, lender.PublicKey(), 1_200)
	require.NoError(t, err)

	var receipt receiptResponse
	status := f.submit(t, f.lendTx(t, lender, 1_200), &receipt)
	require.Equal(t, http.StatusOK, status, receipt.Error)
	assert.True(t, receipt.Committed)
	var logged bool
	for _, line := range receipt.Logs {
		logged = logged || strings.Contains(line, "lent 1200, minted 1000 cash")
	}
	assert.True(t, logged, "lend log line missing: %v", receipt.Logs)

	var pool struct {
		Stats      client.PoolStats `json:"stats"`
		Invariants string           `json:"invariants"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/v1/pools/"+f.amm.String()+"/"+f.mint.String(), &pool))
	assert.Equal(t, uint64(1_200), pool.Stats.LockedPrincipal)
	assert.Equal(t, uint64(1_000), pool.Stats.CashSupply)
	assert.Equal(t, "ok", pool.Invariants)

	require.Eventually(t, func() bool {
		var tx map[string]any
		return f.get(t, "/v1/transactions/"+receipt.Signature, &tx) == http.StatusOK && tx["events"] != nil
	}, 5*time.Second, 10*time.Millisecond)

	var events struct {
		Events []map[string]any `json:"events"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/v1/events/"+cash.EventLent, &events))
	require.Len(t, events.Events, 1)
}

func TestSubmitFailedLend(t *testing.T) {
	f := newFixture(t)
	lender := client.NewWallet()
	_, err := f.node.Client().MintTo(context.Background(), f.faucet, f.mint, lender.PublicKey(), 5)
	require.NoError(t, err)

	var receipt receiptResponse
	status := f.submit(t, f.lendTx(t, lender, 10), &receipt)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.False(t, receipt.Committed)
	assert.Equal(t, "INSUFFICIENT_BALANCE", receipt.Code)
}

func TestSubmitRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/v1/transactions", "application/json", bytes.NewReader([]byte(`{"transaction":"!!"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)

	var acct accountResponse
	require.Equal(t, http.StatusOK, f.get(t, "/v1/accounts/"+f.amm.String(), &acct))
	assert.Equal(t, "Amm", acct.Kind)
	assert.Equal(t, cash.DefaultProgramID.String(), acct.Owner)

	var missing map[string]string
	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/accounts/"+client.NewWallet().PublicKey().String(), &missing))
	assert.Equal(t, "ACCOUNT_NOT_FOUND", missing["code"])

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/v1/accounts/not-a-key", nil))
}

func TestDerive(t *testing.T) {
	f := newFixture(t)
	lender := client.NewWallet().PublicKey()

	var body map[string]any
	path := "/v1/derive?amm=" + f.amm.String() + "&mint=" + f.mint.String() + "&lender=" + lender.String()
	require.Equal(t, http.StatusOK, f.get(t, path, &body))

	set, err := f.node.Client().Deriver().PoolSet(f.amm, f.mint)
	require.NoError(t, err)
	pool := body["pool"].(map[string]any)
	assert.Equal(t, set.Pool.Address.String(), pool["address"])
	assert.Contains(t, body, "lender")

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/v1/derive?amm="+f.amm.String(), nil))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
