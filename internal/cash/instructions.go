package cash

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

// Instruction names. The first eight bytes of instruction data are the
// discriminator of the name.
const (
	InstructionCreateAmm      = "create_amm"
	InstructionCreatePool     = "create_pool_1"
	InstructionCreateCashPool = "create_cash_pool"
	InstructionLend           = "lend"
	InstructionRedeem         = "redeem"
	InstructionLendCash       = "lend_cash"
	InstructionRedeemCash     = "redeem_cash"
)

var instructionMatcher = discriminator.MustNewMatcher(discriminator.ForInstruction,
	InstructionCreateAmm,
	InstructionCreatePool,
	InstructionCreateCashPool,
	InstructionLend,
	InstructionRedeem,
	InstructionLendCash,
	InstructionRedeemCash,
)

// CreateAmmArgs are the arguments of create_amm.
type CreateAmmArgs struct {
	ID                    types.Pubkey `json:"id"`
	LiquidityFee          uint16       `json:"liquidity_fee"`
	ProtocolFeePercentage uint16       `json:"protocol_fee_percentage"`
}

// AmountArgs are the arguments of lend and lend_cash.
type AmountArgs struct {
	Amount uint64 `json:"amount"`
}

func encodeInstruction(name string, args any) []byte {
	d := discriminator.ForInstruction(name)
	if args == nil {
		return d.Bytes()
	}
	body, err := bin.MarshalBorsh(args)
	if err != nil {
		// Argument structs are fixed-size and always encode.
		panic(fmt.Sprintf("cash: encode %s args: %v", name, err))
	}
	return d.Prefix(body)
}

// NewCreateAmmInstruction builds create_amm.
func NewCreateAmmInstruction(programID types.Pubkey, accounts CreateAmmAccounts, args CreateAmmArgs) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionCreateAmm, &args),
	}
}

// NewCreatePoolInstruction builds create_pool_1.
func NewCreatePoolInstruction(programID types.Pubkey, accounts CreatePoolAccounts) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionCreatePool, nil),
	}
}

// NewCreateCashPoolInstruction builds create_cash_pool.
func NewCreateCashPoolInstruction(programID types.Pubkey, accounts CreateCashPoolAccounts) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionCreateCashPool, nil),
	}
}

// NewLendInstruction builds lend.
func NewLendInstruction(programID types.Pubkey, accounts LendAccounts, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionLend, &AmountArgs{Amount: amount}),
	}
}

// NewRedeemInstruction builds redeem. It takes the same accounts as lend.
func NewRedeemInstruction(programID types.Pubkey, accounts LendAccounts) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionRedeem, nil),
	}
}

// NewLendCashInstruction builds lend_cash.
func NewLendCashInstruction(programID types.Pubkey, accounts LendCashAccounts, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionLendCash, &AmountArgs{Amount: amount}),
	}
}

// NewRedeemCashInstruction builds redeem_cash.
func NewRedeemCashInstruction(programID types.Pubkey, accounts LendCashAccounts) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts:  accounts.Metas(),
		Data:      encodeInstruction(InstructionRedeemCash, nil),
	}
}

// DecodedInstruction is a parsed protocol instruction.
type DecodedInstruction struct {
	Name     string         `json:"name"`
	Args     any            `json:"args,omitempty"`
	Accounts []types.Pubkey `json:"accounts"`
}

// DecodeInstruction parses protocol instruction data.
func DecodeInstruction(ix *types.Instruction) (*DecodedInstruction, error) {
	name, body, err := instructionMatcher.MatchData(ix.Data)
	if err != nil {
		return nil, cerrors.ErrInvalidInstruction.WithCause(err)
	}
	out := &DecodedInstruction{Name: name, Accounts: ix.AccountKeys()}

	switch name {
	case InstructionCreateAmm:
		var args CreateAmmArgs
		if err := bin.UnmarshalBorsh(&args, body); err != nil {
			return nil, cerrors.ErrInvalidInstruction.WithCause(err)
		}
		out.Args = &args
	case InstructionLend, InstructionLendCash:
		var args AmountArgs
		if err := bin.UnmarshalBorsh(&args, body); err != nil {
			return nil, cerrors.ErrInvalidInstruction.WithCause(err)
		}
		out.Args = &args
	}
	return out, nil
}
