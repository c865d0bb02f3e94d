package storage

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/pkg/types"
)

type sampleEvent struct {
	Pool   types.Pubkey `json:"pool"`
	Amount uint64       `json:"amount"`
	Cash   uint64       `json:"cash"`
}

func TestEventDataKeepsIntegers(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	data, err := EventData(&sampleEvent{Pool: pool, Amount: 1_200, Cash: math.MaxUint64})
	require.NoError(t, err)

	assert.Equal(t, pool.String(), data["pool"])
	assert.Equal(t, int64(1_200), data["amount"])
	// Beyond int64 the value is kept exact as a string.
	assert.Equal(t, "18446744073709551615", data["cash"])
}

func TestModelIDIsStable(t *testing.T) {
	a := ModelID("event", "sig", "0")
	assert.Equal(t, a, ModelID("event", "sig", "0"))
	assert.NotEqual(t, a, ModelID("event", "sig", "1"))
	assert.NotEqual(t, a, ModelID("instruction", "sig", "0"))
}

func TestTransactionUpdateToModel(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	update := &datasource.TransactionUpdate{
		Signature:    solana.Signature{1, 2, 3},
		Signers:      []types.Pubkey{signer},
		Instructions: make([]types.Instruction, 2),
		Logs:         []string{"Program log: hi"},
		Err:          "boom",
		ErrCode:      "INSUFFICIENT_BALANCE",
		Slot:         7,
		BlockTime:    1_700_000_000,
	}

	m := TransactionUpdateToModel(update)
	assert.Equal(t, update.Signature.String(), m.Signature)
	assert.Equal(t, ModelID("transaction", m.Signature), m.ID)
	assert.False(t, m.Success)
	assert.Equal(t, "INSUFFICIENT_BALANCE", m.ErrorCode)
	assert.Equal(t, []string{signer.String()}, m.Signers)
	assert.Equal(t, 2, m.NumInstructions)
	assert.Equal(t, uint64(7), m.Slot)
}

func TestInstructionAndAccountModels(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	acct := solana.NewWallet().PublicKey()
	ix := &types.Instruction{
		ProgramID: program,
		Accounts:  []types.AccountMeta{{Pubkey: acct, IsWritable: true}},
		Data:      []byte{9},
	}

	im := InstructionToModel(solana.Signature{4}, 3, 1, ix, "lend")
	assert.Equal(t, program.String(), im.ProgramID)
	assert.Equal(t, []string{acct.String()}, im.Accounts)
	assert.Equal(t, "lend", im.Name)
	assert.Equal(t, 1, im.InstructionIndex)

	am := AccountUpdateToModel(&datasource.AccountUpdate{
		Pubkey:  acct,
		Account: types.Account{Owner: program, Data: []byte{1, 2}},
		Version: 5,
		Slot:    3,
	}, "Pool")
	assert.Equal(t, acct.String(), am.Pubkey)
	assert.Equal(t, program.String(), am.Owner)
	assert.Equal(t, "Pool", am.Kind)
	assert.Equal(t, uint64(5), am.Version)
}
