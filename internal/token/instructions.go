package token

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

// InstructionType is the leading byte of token instruction data.
type InstructionType uint8

// Instruction tags share the SPL token numbering.
const (
	InstructionInitializeMint    InstructionType = 0
	InstructionInitializeAccount InstructionType = 1
	InstructionTransfer          InstructionType = 3
	InstructionMintTo            InstructionType = 7
	InstructionBurn              InstructionType = 8
	InstructionFreezeAccount     InstructionType = 10
	InstructionThawAccount       InstructionType = 11
)

// String returns the instruction name.
func (t InstructionType) String() string {
	switch t {
	case InstructionInitializeMint:
		return "InitializeMint"
	case InstructionInitializeAccount:
		return "InitializeAccount"
	case InstructionTransfer:
		return "Transfer"
	case InstructionMintTo:
		return "MintTo"
	case InstructionBurn:
		return "Burn"
	case InstructionFreezeAccount:
		return "FreezeAccount"
	case InstructionThawAccount:
		return "ThawAccount"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// InitializeMintArgs are the arguments of InitializeMint.
type InitializeMintArgs struct {
	Decimals        uint8
	MintAuthority   types.Pubkey
	FreezeAuthority types.Pubkey
}

// AmountArgs are the arguments of Transfer, MintTo and Burn.
type AmountArgs struct {
	Amount uint64
}

func newInstruction(t InstructionType, args any, accounts ...types.AccountMeta) types.Instruction {
	data := []byte{byte(t)}
	if args != nil {
		body, err := bin.MarshalBorsh(args)
		if err != nil {
			// Argument structs are fixed-size and always encode.
			panic(fmt.Sprintf("token: encode %s args: %v", t, err))
		}
		data = append(data, body...)
	}
	return types.Instruction{ProgramID: ProgramID, Accounts: accounts, Data: data}
}

// NewInitializeMintInstruction creates a mint at mint. The mint address must
// sign, either as a key holder or through program seeds.
func NewInitializeMintInstruction(mint types.Pubkey, decimals uint8, mintAuthority, freezeAuthority types.Pubkey) types.Instruction {
	return newInstruction(InstructionInitializeMint,
		&InitializeMintArgs{Decimals: decimals, MintAuthority: mintAuthority, FreezeAuthority: freezeAuthority},
		types.Meta(mint).Writable().Signer(),
	)
}

// NewInitializeAccountInstruction creates owner's token account for mint at
// its associated address.
func NewInitializeAccountInstruction(account, mint, owner types.Pubkey) types.Instruction {
	return newInstruction(InstructionInitializeAccount, nil,
		types.Meta(account).Writable(),
		types.Meta(mint),
		types.Meta(owner),
	)
}

// NewTransferInstruction moves amount from source to destination. extraSigners
// are passed as additional signer accounts, used to present the freeze
// authority when either side is locked.
func NewTransferInstruction(source, destination, mint, authority types.Pubkey, amount uint64, extraSigners ...types.Pubkey) types.Instruction {
	accounts := []types.AccountMeta{
		types.Meta(source).Writable(),
		types.Meta(destination).Writable(),
		types.Meta(mint),
		types.Meta(authority).Signer(),
	}
	for _, s := range extraSigners {
		accounts = append(accounts, types.Meta(s).Signer())
	}
	return newInstruction(InstructionTransfer, &AmountArgs{Amount: amount}, accounts...)
}

// NewMintToInstruction mints amount into destination.
func NewMintToInstruction(mint, destination, authority types.Pubkey, amount uint64) types.Instruction {
	return newInstruction(InstructionMintTo, &AmountArgs{Amount: amount},
		types.Meta(mint).Writable(),
		types.Meta(destination).Writable(),
		types.Meta(authority).Signer(),
	)
}

// NewBurnInstruction burns amount from account, signed by its owner. A
// locked account also needs the freeze authority among extraSigners.
func NewBurnInstruction(account, mint, owner types.Pubkey, amount uint64, extraSigners ...types.Pubkey) types.Instruction {
	accounts := []types.AccountMeta{
		types.Meta(account).Writable(),
		types.Meta(mint).Writable(),
		types.Meta(owner).Signer(),
	}
	for _, s := range extraSigners {
		accounts = append(accounts, types.Meta(s).Signer())
	}
	return newInstruction(InstructionBurn, &AmountArgs{Amount: amount}, accounts...)
}

// NewFreezeAccountInstruction locks account.
func NewFreezeAccountInstruction(account, mint, freezeAuthority types.Pubkey) types.Instruction {
	return newInstruction(InstructionFreezeAccount, nil,
		types.Meta(account).Writable(),
		types.Meta(mint),
		types.Meta(freezeAuthority).Signer(),
	)
}

// NewThawAccountInstruction unlocks account.
func NewThawAccountInstruction(account, mint, freezeAuthority types.Pubkey) types.Instruction {
	return newInstruction(InstructionThawAccount, nil,
		types.Meta(account).Writable(),
		types.Meta(mint),
		types.Meta(freezeAuthority).Signer(),
	)
}

// DecodedInstruction is a parsed token instruction.
type DecodedInstruction struct {
	Type     InstructionType
	Amount   uint64
	Mint     *InitializeMintArgs
	Accounts []types.Pubkey
}

// DecodeInstruction parses token instruction data.
func DecodeInstruction(ix *types.Instruction) (*DecodedInstruction, error) {
	if len(ix.Data) == 0 {
		return nil, cerrors.ErrInvalidInstruction
	}
	out := &DecodedInstruction{Type: InstructionType(ix.Data[0]), Accounts: ix.AccountKeys()}
	body := ix.Data[1:]

	switch out.Type {
	case InstructionInitializeMint:
		var args InitializeMintArgs
		if err := bin.UnmarshalBorsh(&args, body); err != nil {
			return nil, cerrors.ErrInvalidInstruction.WithCause(err)
		}
		out.Mint = &args
	case InstructionTransfer, InstructionMintTo, InstructionBurn:
		var args AmountArgs
		if err := bin.UnmarshalBorsh(&args, body); err != nil {
			return nil, cerrors.ErrInvalidInstruction.WithCause(err)
		}
		out.Amount = args.Amount
	case InstructionInitializeAccount, InstructionFreezeAccount, InstructionThawAccount:
	default:
		return nil, cerrors.ErrInvalidInstruction.WithDetails(map[string]any{"tag": ix.Data[0]})
	}
	return out, nil
}
