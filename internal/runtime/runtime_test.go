package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/datasource"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/ledger"
	plog "github.com/lugondev/go-cash/pkg/log"
	"github.com/lugondev/go-cash/pkg/types"
)

const (
	opCreate byte = iota
	opStore
	opStoreThenFail
	opInvokeSigned
)

var (
	callerID = solana.MustPublicKeyFromBase58("4b4Y2sVEBpFmuBZ6KMdtKrCqBJjGw3Po2o6Ftgmu2tGU")
	calleeID = solana.MustPublicKeyFromBase58("8jN8d8wR6dM4AaBnkvbsWw8vbeVLAvAbZ2t1KBhvtkCj")
)

// scratchProgram writes raw bytes and calls signerProgram with a PDA signer.
type scratchProgram struct{}

func (scratchProgram) ID() types.Pubkey { return callerID }
func (scratchProgram) Name() string     { return "scratch" }

func (scratchProgram) Process(ic *InvokeContext) error {
	data := ic.Data()
	if len(data) == 0 {
		return cerrors.ErrInvalidInstruction
	}
	target, err := ic.Account(0)
	if err != nil {
		return err
	}
	switch data[0] {
	case opCreate:
		ic.Log("create %s", target.Pubkey)
		return ic.Create(target.Pubkey, data[1:])
	case opStore:
		return ic.Store(target.Pubkey, data[1:])
	case opStoreThenFail:
		if err := ic.Store(target.Pubkey, data[1:]); err != nil {
			return err
		}
		return cerrors.Custom("boom")
	case opInvokeSigned:
		vault, err := authority.FindAddress([][]byte{[]byte("vault")}, callerID)
		if err != nil {
			return err
		}
		seeds := vault.SignerSeeds()
		if data[1] == 0 {
			seeds = [][]byte{[]byte("other"), {vault.Bump}}
		}
		return ic.Invoke(types.Instruction{
			ProgramID: calleeID,
			Accounts:  []types.AccountMeta{types.Meta(target.Pubkey).Signer()},
		}, seeds)
	}
	return cerrors.ErrInvalidInstruction
}

// signerProgram succeeds only when its first account signed.
type signerProgram struct{}

func (signerProgram) ID() types.Pubkey { return calleeID }
func (signerProgram) Name() string     { return "signer" }

func (signerProgram) Process(ic *InvokeContext) error {
	acct, err := ic.Account(0)
	if err != nil {
		return err
	}
	if !ic.IsSigner(acct.Pubkey) {
		return cerrors.ErrMissingSignature
	}
	ic.Emit([]byte{0xCA, 0x5E})
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	txs      []*datasource.TransactionUpdate
	accounts []*datasource.AccountUpdate
}

func (p *recordingPublisher) PublishTransaction(u *datasource.TransactionUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = append(p.txs, u)
}

func (p *recordingPublisher) PublishAccount(u *datasource.AccountUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = append(p.accounts, u)
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt := New(ledger.NewMemory(), opts...)
	require.NoError(t, rt.Register(scratchProgram{}))
	require.NoError(t, rt.Register(signerProgram{}))
	return rt
}

func scratchIx(payer, target solana.PublicKey, op byte, payload ...byte) types.Instruction {
	return types.Instruction{
		ProgramID: callerID,
		Accounts: []types.AccountMeta{
			types.Meta(target).Writable(),
			types.Meta(payer).Signer(),
		},
		Data: append([]byte{op}, payload...),
	}
}

func signed(t *testing.T, nonce uint64, key solana.PrivateKey, ixs ...types.Instruction) *Transaction {
	t.Helper()
	tx := NewTransaction(nonce, ixs...)
	require.NoError(t, tx.Sign(key))
	return tx
}

func TestSubmitCommits(t *testing.T) {
	pub := &recordingPublisher{}
	rt := newTestRuntime(t, WithPublisher(pub))
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	receipt, err := rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opCreate, 7, 8)))
	require.NoError(t, err)
	assert.True(t, receipt.Committed)
	assert.Equal(t, uint64(1), receipt.Slot)
	assert.Equal(t, []string{
		plog.FormatInvoke(callerID.String(), 1),
		plog.FormatLog("create " + target.String()),
		plog.FormatSuccess(callerID.String()),
	}, receipt.Logs)

	rec, err := rt.Ledger().Get(target)
	require.NoError(t, err)
	assert.Equal(t, callerID, rec.Owner)
	assert.Equal(t, []byte{7, 8}, rec.Data)

	require.Len(t, pub.txs, 1)
	assert.True(t, pub.txs[0].Succeeded())
	require.Len(t, pub.accounts, 1)
	assert.Equal(t, target, pub.accounts[0].Pubkey)
}

func TestConcurrentCommitsPublishInSlotOrder(t *testing.T) {
	pub := &recordingPublisher{}
	rt := newTestRuntime(t, WithPublisher(pub))

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		payer := solana.NewWallet().PrivateKey
		tx := signed(t, uint64(i), payer, scratchIx(payer.PublicKey(), solana.NewWallet().PublicKey(), opCreate, byte(i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rt.Submit(context.Background(), tx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, pub.txs, n)
	for i, u := range pub.txs {
		assert.Equal(t, uint64(i+1), u.Slot)
	}
	require.Len(t, pub.accounts, n)
	for i, u := range pub.accounts {
		assert.Equal(t, uint64(i+1), u.Slot)
	}
}

func TestSubmitRequiresSignatures(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	unsigned := NewTransaction(1, scratchIx(payer.PublicKey(), target, opCreate))
	_, err := rt.Submit(context.Background(), unsigned)
	assert.ErrorIs(t, err, cerrors.ErrMissingSignature)

	tampered := signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opCreate))
	tampered.Message.Nonce = 2
	_, err = rt.Submit(context.Background(), tampered)
	assert.ErrorIs(t, err, cerrors.ErrInvalidSignature)

	other := solana.NewWallet().PrivateKey
	wrongKey := NewTransaction(1, scratchIx(payer.PublicKey(), target, opCreate))
	require.NoError(t, wrongKey.Sign(other))
	_, err = rt.Submit(context.Background(), wrongKey)
	assert.ErrorIs(t, err, cerrors.ErrMissingSignature)
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	pub := &recordingPublisher{}
	rt := newTestRuntime(t, WithPublisher(pub))
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	_, err := rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opCreate, 1)))
	require.NoError(t, err)

	receipt, err := rt.Submit(context.Background(), signed(t, 2, payer,
		scratchIx(payer.PublicKey(), target, opStore, 2),
		scratchIx(payer.PublicKey(), target, opStoreThenFail, 3),
	))
	require.Error(t, err)
	assert.False(t, receipt.Committed)
	assert.Contains(t, receipt.Logs[len(receipt.Logs)-1], "failed: CUSTOM: boom")

	rec, err := rt.Ledger().Get(target)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, rec.Data)
	assert.Equal(t, uint64(1), rt.Ledger().Slot())

	require.Len(t, pub.txs, 2)
	assert.False(t, pub.txs[1].Succeeded())
	assert.Equal(t, cerrors.ErrCodeCustom, pub.txs[1].ErrCode)
}

func TestStoreRequiresOwnership(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	setup := rt.Ledger().Begin()
	require.NoError(t, setup.Create(target, calleeID, []byte{1}))
	_, err := setup.Commit()
	require.NoError(t, err)

	_, err = rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opStore, 2)))
	assert.ErrorIs(t, err, cerrors.ErrIllegalOwner)
}

func TestStoreRequiresWritable(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	ix := scratchIx(payer.PublicKey(), target, opCreate)
	ix.Accounts[0].IsWritable = false
	_, err := rt.Submit(context.Background(), signed(t, 1, payer, ix))
	assert.ErrorIs(t, err, cerrors.ErrReadonlyAccount)
}

func TestInvokeWithProgramSigner(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	vault, err := authority.FindAddress([][]byte{[]byte("vault")}, callerID)
	require.NoError(t, err)

	receipt, err := rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), vault.Address, opInvokeSigned, 1)))
	require.NoError(t, err)

	data := plog.NewParser().ExtractProgramData(receipt.Logs)
	require.Len(t, data, 1)
	assert.Equal(t, calleeID.String(), data[0].ProgramID)
	assert.Contains(t, receipt.Logs, plog.FormatInvoke(calleeID.String(), 2))
}

func TestInvokeRejectsWrongSeeds(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	vault, err := authority.FindAddress([][]byte{[]byte("vault")}, callerID)
	require.NoError(t, err)

	_, err = rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), vault.Address, opInvokeSigned, 0)))
	require.Error(t, err)
	// Either the seeds land on the curve or derive a different address.
	assert.True(t,
		cerrors.Is(err, cerrors.ErrMissingSignature) || cerrors.Is(err, cerrors.ErrInvalidSeeds),
		"unexpected error %v", err)
}

func TestReplayIsRejected(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	_, err := rt.Submit(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opCreate)))
	require.NoError(t, err)

	store := signed(t, 2, payer, scratchIx(payer.PublicKey(), target, opStore, 5))
	_, err = rt.Submit(context.Background(), store)
	require.NoError(t, err)
	_, err = rt.Submit(context.Background(), store)
	assert.ErrorIs(t, err, cerrors.ErrDuplicateTransaction)
}

func TestSimulateDiscards(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	target := solana.NewWallet().PublicKey()

	receipt, err := rt.Simulate(context.Background(), signed(t, 1, payer, scratchIx(payer.PublicKey(), target, opCreate)))
	require.NoError(t, err)
	assert.False(t, receipt.Committed)
	assert.NotEmpty(t, receipt.Logs)

	ok, err := rt.Ledger().Exists(target)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownProgram(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	ix := scratchIx(payer.PublicKey(), solana.NewWallet().PublicKey(), opCreate)
	ix.ProgramID = solana.SystemProgramID

	_, err := rt.Submit(context.Background(), signed(t, 1, payer, ix))
	assert.ErrorIs(t, err, cerrors.ErrUnknownProgram)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	rt := newTestRuntime(t)
	assert.Error(t, rt.Register(scratchProgram{}))
}

func TestTransactionEncoding(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	tx := signed(t, 9, payer, scratchIx(payer.PublicKey(), solana.NewWallet().PublicKey(), opCreate, 1, 2, 3))

	encoded, err := tx.ToBase64()
	require.NoError(t, err)
	decoded, err := TransactionFromBase64(encoded)
	require.NoError(t, err)

	assert.Equal(t, tx.Signature(), decoded.Signature())
	assert.Equal(t, tx.Message.Nonce, decoded.Message.Nonce)
	require.NoError(t, decoded.Verify())
}

func TestCanceledContext(t *testing.T) {
	rt := newTestRuntime(t)
	payer := solana.NewWallet().PrivateKey
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.Submit(ctx, signed(t, 1, payer, scratchIx(payer.PublicKey(), solana.NewWallet().PublicKey(), opCreate)))
	assert.ErrorIs(t, err, cerrors.ErrContextCanceled)
}
