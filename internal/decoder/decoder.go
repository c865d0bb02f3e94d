package decoder

import (
	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/types"
)

// NewInstructionDecoder decodes lending and token instructions.
func NewInstructionDecoder(programID types.Pubkey) *instruction.CompositeInstructionDecoder[any] {
	return instruction.NewCompositeInstructionDecoder(
		instruction.Erase[*cash.DecodedInstruction](NewCashInstructionDecoder(programID)),
		instruction.Erase[*token.DecodedInstruction](NewTokenInstructionDecoder()),
	)
}

// NewAccountDecoder decodes every account the lending and token programs
// own.
func NewAccountDecoder(programID types.Pubkey) *account.CompositeAccountDecoder[any] {
	return account.NewCompositeAccountDecoder[any](
		NewCashAccountDecoder(programID),
		NewTokenAccountDecoder(),
	)
}
