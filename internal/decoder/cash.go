// Package decoder binds the lending and token programs' codecs to the
// generic instruction, account and event decoders used by journal pipes.
package decoder

import (
	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/cash"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/transaction"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

// Account kinds reported for the lending program.
const (
	KindAmm  = "Amm"
	KindPool = "Pool"
)

// NewCashInstructionDecoder decodes the lending program's instructions.
func NewCashInstructionDecoder(programID types.Pubkey) *instruction.ProgramInstructionDecoder[*cash.DecodedInstruction] {
	return instruction.NewProgramInstructionDecoder(programID,
		func(ix *types.Instruction) (string, *cash.DecodedInstruction, error) {
			decoded, err := cash.DecodeInstruction(ix)
			if err != nil {
				return "", nil, err
			}
			return decoded.Name, decoded, nil
		})
}

// NewCashAccountDecoder decodes Amm and Pool accounts. Data is a *state.Amm
// or a *state.Pool.
func NewCashAccountDecoder(programID types.Pubkey) *account.ProgramAccountDecoder[any] {
	return account.NewProgramAccountDecoder(programID, DecodeCashAccount)
}

// DecodeCashAccount picks the layout from the account discriminator.
func DecodeCashAccount(data []byte) (string, any, error) {
	d, err := discriminator.FromBytes(data)
	if err != nil {
		return "", nil, err
	}
	switch d {
	case state.AmmDiscriminator:
		amm, err := state.DecodeAmm(data)
		return KindAmm, amm, err
	case state.PoolDiscriminator:
		pool, err := state.DecodePool(data)
		return KindPool, pool, err
	default:
		return "", nil, cerrors.ErrInvalidAccountData
	}
}

// NewCashEventDecoder decodes events logged while programID was executing.
func NewCashEventDecoder(programID types.Pubkey) transaction.EventDecoder {
	return transaction.EventDecoderFunc(func(from types.Pubkey, data []byte) (string, any, bool) {
		if !from.Equals(programID) {
			return "", nil, false
		}
		name, event, err := cash.DecodeEvent(data)
		if err != nil {
			return "", nil, false
		}
		return name, event, true
	})
}
