package decoder

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

func TestCashInstructionDecoder(t *testing.T) {
	programID := cash.DefaultProgramID
	dec := NewCashInstructionDecoder(programID)

	ix := cash.NewLendInstruction(programID, cash.LendAccounts{}, 1200)
	decoded := dec.DecodeInstruction(&ix)
	require.NotNil(t, decoded)
	assert.Equal(t, cash.InstructionLend, decoded.Name)
	args, ok := decoded.Data.Args.(*cash.AmountArgs)
	require.True(t, ok)
	assert.Equal(t, uint64(1200), args.Amount)

	other := cash.NewLendInstruction(solana.NewWallet().PublicKey(), cash.LendAccounts{}, 1200)
	assert.Nil(t, dec.DecodeInstruction(&other), "foreign program")

	garbage := types.Instruction{ProgramID: programID, Data: []byte{1, 2, 3}}
	assert.Nil(t, dec.DecodeInstruction(&garbage))
}

func TestInstructionDecoderRoutesByProgram(t *testing.T) {
	dec := NewInstructionDecoder(cash.DefaultProgramID)

	mint := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	mintTo := token.NewMintToInstruction(mint, dest, solana.NewWallet().PublicKey(), 50)
	decoded := dec.DecodeInstruction(&mintTo)
	require.NotNil(t, decoded)
	assert.Equal(t, token.InstructionMintTo.String(), decoded.Name)
	assert.Equal(t, uint64(50), decoded.Data.(*token.DecodedInstruction).Amount)

	redeem := cash.NewRedeemInstruction(cash.DefaultProgramID, cash.LendAccounts{})
	decoded = dec.DecodeInstruction(&redeem)
	require.NotNil(t, decoded)
	assert.Equal(t, cash.InstructionRedeem, decoded.Name)
}

func TestAccountDecoder(t *testing.T) {
	programID := cash.DefaultProgramID
	dec := NewAccountDecoder(programID)

	ammData, err := (&state.Amm{ID: solana.NewWallet().PublicKey(), LiquidityFee: 30}).Encode()
	require.NoError(t, err)
	decoded := dec.DecodeAccount(&types.Account{Owner: programID, Data: ammData})
	require.NotNil(t, decoded)
	assert.Equal(t, KindAmm, decoded.Kind)
	assert.Equal(t, uint16(30), decoded.Data.(*state.Amm).LiquidityFee)

	poolData, err := (&state.Pool{PoolType: state.PoolTypeCash}).Encode()
	require.NoError(t, err)
	decoded = dec.DecodeAccount(&types.Account{Owner: programID, Data: poolData})
	require.NotNil(t, decoded)
	assert.Equal(t, KindPool, decoded.Kind)
	assert.Equal(t, state.PoolTypeCash, decoded.Data.(*state.Pool).PoolType)

	mintData, err := (&token.Mint{Decimals: cash.MintDecimals, IsInitialized: true}).Encode()
	require.NoError(t, err)
	decoded = dec.DecodeAccount(&types.Account{Owner: token.ProgramID, Data: mintData})
	require.NotNil(t, decoded)
	assert.Equal(t, KindMint, decoded.Kind)

	acctData, err := (&token.Account{Amount: 9}).Encode()
	require.NoError(t, err)
	decoded = dec.DecodeAccount(&types.Account{Owner: token.ProgramID, Data: acctData})
	require.NotNil(t, decoded)
	assert.Equal(t, KindTokenAccount, decoded.Kind)

	// Pool layout under the token program is not a token account.
	assert.Nil(t, dec.DecodeAccount(&types.Account{Owner: token.ProgramID, Data: poolData}))
	assert.Nil(t, dec.DecodeAccount(&types.Account{Owner: programID, Data: []byte{1}}))
}

func TestCashEventDecoder(t *testing.T) {
	programID := cash.DefaultProgramID
	dec := NewCashEventDecoder(programID)

	event := cash.LentEvent{Pool: solana.NewWallet().PublicKey(), Lender: solana.NewWallet().PublicKey(), Amount: 1200, Cash: 1000}
	body, err := bin.MarshalBorsh(&event)
	require.NoError(t, err)
	data := discriminator.ForEvent(cash.EventLent).Prefix(body)

	name, decoded, ok := dec.DecodeEvent(programID, data)
	require.True(t, ok)
	assert.Equal(t, cash.EventLent, name)
	assert.Equal(t, &event, decoded)

	_, _, ok = dec.DecodeEvent(token.ProgramID, data)
	assert.False(t, ok, "event logged by another program")

	_, _, ok = dec.DecodeEvent(programID, []byte("short"))
	assert.False(t, ok)
}
