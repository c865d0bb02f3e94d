package decoder

import (
	"github.com/lugondev/go-cash/internal/account"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

const (
	KindMint         = "Mint"
	KindTokenAccount = "TokenAccount"
)

// NewTokenInstructionDecoder decodes token program instructions, named by
// their instruction type.
func NewTokenInstructionDecoder() *instruction.ProgramInstructionDecoder[*token.DecodedInstruction] {
	return instruction.NewProgramInstructionDecoder(token.ProgramID,
		func(ix *types.Instruction) (string, *token.DecodedInstruction, error) {
			decoded, err := token.DecodeInstruction(ix)
			if err != nil {
				return "", nil, err
			}
			return decoded.Type.String(), decoded, nil
		})
}

// NewTokenAccountDecoder decodes mints and token accounts. Data is a
// *token.Mint or a *token.Account.
func NewTokenAccountDecoder() *account.ProgramAccountDecoder[any] {
	return account.NewProgramAccountDecoder(token.ProgramID, DecodeTokenAccount)
}

func DecodeTokenAccount(data []byte) (string, any, error) {
	d, err := discriminator.FromBytes(data)
	if err != nil {
		return "", nil, err
	}
	switch d {
	case token.MintDiscriminator:
		mint, err := token.DecodeMint(data)
		return KindMint, mint, err
	case token.AccountDiscriminator:
		acct, err := token.DecodeAccount(data)
		return KindTokenAccount, acct, err
	default:
		return "", nil, cerrors.ErrInvalidAccountData
	}
}
