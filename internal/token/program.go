package token

import (
	"log/slog"
	"math/bits"

	"github.com/lugondev/go-cash/internal/authority"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/types"
)

// Program implements the token instructions.
type Program struct {
	logger *slog.Logger
}

// NewProgram returns the token program.
func NewProgram(logger *slog.Logger) *Program {
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{logger: logger.With("program", "token")}
}

func (p *Program) ID() types.Pubkey { return ProgramID }
func (p *Program) Name() string     { return "token" }

// Process dispatches one token instruction.
func (p *Program) Process(ic *runtime.InvokeContext) error {
	data := ic.Data()
	if len(data) == 0 {
		return cerrors.ErrInvalidInstruction
	}
	ix := &types.Instruction{ProgramID: ProgramID, Accounts: ic.Accounts(), Data: data}
	decoded, err := DecodeInstruction(ix)
	if err != nil {
		return err
	}
	ic.Log("Instruction: %s", decoded.Type)

	switch decoded.Type {
	case InstructionInitializeMint:
		return p.initializeMint(ic, decoded.Mint)
	case InstructionInitializeAccount:
		return p.initializeAccount(ic)
	case InstructionTransfer:
		return p.transfer(ic, decoded.Amount)
	case InstructionMintTo:
		return p.mintTo(ic, decoded.Amount)
	case InstructionBurn:
		return p.burn(ic, decoded.Amount)
	case InstructionFreezeAccount:
		return p.setLocked(ic, true)
	case InstructionThawAccount:
		return p.setLocked(ic, false)
	}
	return cerrors.ErrInvalidInstruction
}

func (p *Program) initializeMint(ic *runtime.InvokeContext, args *InitializeMintArgs) error {
	mintMeta, err := ic.Account(0)
	if err != nil {
		return err
	}
	if !ic.IsSigner(mintMeta.Pubkey) {
		return cerrors.ErrMissingSignature.WithDetails(map[string]any{"account": "mint"})
	}
	mint := &Mint{
		MintAuthority:   args.MintAuthority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	}
	data, err := mint.Encode()
	if err != nil {
		return err
	}
	return ic.Create(mintMeta.Pubkey, data)
}

func (p *Program) initializeAccount(ic *runtime.InvokeContext) error {
	keys, err := accountKeys(ic, 3)
	if err != nil {
		return err
	}
	account, mintKey, owner := keys[0], keys[1], keys[2]

	expected, err := authority.AssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return err
	}
	if err := authority.Verify("token_account", account, expected); err != nil {
		return err
	}
	if _, err := p.loadMint(ic, mintKey); err != nil {
		return err
	}

	data, err := (&Account{Mint: mintKey, Owner: owner}).Encode()
	if err != nil {
		return err
	}
	return ic.Create(account, data)
}

func (p *Program) transfer(ic *runtime.InvokeContext, amount uint64) error {
	keys, err := accountKeys(ic, 4)
	if err != nil {
		return err
	}
	srcKey, dstKey, mintKey, authKey := keys[0], keys[1], keys[2], keys[3]

	mint, err := p.loadMint(ic, mintKey)
	if err != nil {
		return err
	}
	src, err := p.loadAccount(ic, srcKey, mintKey)
	if err != nil {
		return err
	}
	dst, err := p.loadAccount(ic, dstKey, mintKey)
	if err != nil {
		return err
	}
	if err := requireOwner(ic, src, authKey); err != nil {
		return err
	}
	if (src.Locked || dst.Locked) && !p.freezeAuthoritySigned(ic, mint) {
		return cerrors.ErrAccountFrozen.WithDetails(map[string]any{
			"source_locked":      src.Locked,
			"destination_locked": dst.Locked,
		})
	}
	if src.Amount < amount {
		return cerrors.InsufficientBalance(src.Amount, amount)
	}
	if srcKey.Equals(dstKey) {
		return nil
	}

	src.Amount -= amount
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return cerrors.ErrCalculationError
	}
	dst.Amount = sum

	if err := p.storeAccount(ic, srcKey, src); err != nil {
		return err
	}
	return p.storeAccount(ic, dstKey, dst)
}

func (p *Program) mintTo(ic *runtime.InvokeContext, amount uint64) error {
	keys, err := accountKeys(ic, 3)
	if err != nil {
		return err
	}
	mintKey, dstKey, authKey := keys[0], keys[1], keys[2]

	mint, err := p.loadMint(ic, mintKey)
	if err != nil {
		return err
	}
	if !mint.MintAuthority.Equals(authKey) || !ic.IsSigner(authKey) {
		return cerrors.ErrUnauthorized.WithDetails(map[string]any{"role": "mint_authority"})
	}
	dst, err := p.loadAccount(ic, dstKey, mintKey)
	if err != nil {
		return err
	}
	if dst.Locked && !p.freezeAuthoritySigned(ic, mint) {
		return cerrors.ErrAccountFrozen.WithDetails(map[string]any{"destination": dstKey.String()})
	}

	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return cerrors.ErrCalculationError
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return cerrors.ErrCalculationError
	}
	mint.Supply = supply
	dst.Amount = balance

	if err := p.storeMint(ic, mintKey, mint); err != nil {
		return err
	}
	return p.storeAccount(ic, dstKey, dst)
}

func (p *Program) burn(ic *runtime.InvokeContext, amount uint64) error {
	keys, err := accountKeys(ic, 3)
	if err != nil {
		return err
	}
	srcKey, mintKey, authKey := keys[0], keys[1], keys[2]

	mint, err := p.loadMint(ic, mintKey)
	if err != nil {
		return err
	}
	src, err := p.loadAccount(ic, srcKey, mintKey)
	if err != nil {
		return err
	}
	if err := requireOwner(ic, src, authKey); err != nil {
		return err
	}
	if src.Locked && !p.freezeAuthoritySigned(ic, mint) {
		return cerrors.ErrAccountFrozen.WithDetails(map[string]any{"source": srcKey.String()})
	}
	if src.Amount < amount {
		return cerrors.InsufficientBalance(src.Amount, amount)
	}
	if mint.Supply < amount {
		return cerrors.ErrCalculationError
	}

	src.Amount -= amount
	mint.Supply -= amount

	if err := p.storeAccount(ic, srcKey, src); err != nil {
		return err
	}
	return p.storeMint(ic, mintKey, mint)
}

func (p *Program) setLocked(ic *runtime.InvokeContext, locked bool) error {
	keys, err := accountKeys(ic, 3)
	if err != nil {
		return err
	}
	acctKey, mintKey, authKey := keys[0], keys[1], keys[2]

	mint, err := p.loadMint(ic, mintKey)
	if err != nil {
		return err
	}
	if mint.FreezeAuthority.IsZero() || !mint.FreezeAuthority.Equals(authKey) || !ic.IsSigner(authKey) {
		return cerrors.ErrUnauthorized.WithDetails(map[string]any{"role": "freeze_authority"})
	}
	acct, err := p.loadAccount(ic, acctKey, mintKey)
	if err != nil {
		return err
	}
	acct.Locked = locked
	return p.storeAccount(ic, acctKey, acct)
}

func (p *Program) freezeAuthoritySigned(ic *runtime.InvokeContext, mint *Mint) bool {
	return !mint.FreezeAuthority.IsZero() && ic.IsSigner(mint.FreezeAuthority)
}

func requireOwner(ic *runtime.InvokeContext, acct *Account, authKey types.Pubkey) error {
	if !acct.Owner.Equals(authKey) {
		return cerrors.ErrUnauthorized.WithDetails(map[string]any{
			"role":      "owner",
			"owner":     acct.Owner.String(),
			"presented": authKey.String(),
		})
	}
	if !ic.IsSigner(authKey) {
		return cerrors.ErrMissingSignature.WithDetails(map[string]any{"account": authKey.String()})
	}
	return nil
}

func accountKeys(ic *runtime.InvokeContext, n int) ([]types.Pubkey, error) {
	if len(ic.Accounts()) < n {
		return nil, cerrors.ErrNotEnoughAccounts.WithDetails(map[string]any{
			"want": n,
			"got":  len(ic.Accounts()),
		})
	}
	keys := make([]types.Pubkey, n)
	for i := range keys {
		keys[i] = ic.Accounts()[i].Pubkey
	}
	return keys, nil
}

func (p *Program) loadMint(ic *runtime.InvokeContext, key types.Pubkey) (*Mint, error) {
	rec, err := ic.Get(key)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(ProgramID) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": "mint", "address": key.String()})
	}
	mint, err := DecodeMint(rec.Data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, cerrors.ErrUninitializedAccount
	}
	return mint, nil
}

func (p *Program) loadAccount(ic *runtime.InvokeContext, key, mintKey types.Pubkey) (*Account, error) {
	rec, err := ic.Get(key)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(ProgramID) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": "token_account", "address": key.String()})
	}
	acct, err := DecodeAccount(rec.Data)
	if err != nil {
		return nil, err
	}
	if !acct.Mint.Equals(mintKey) {
		return nil, cerrors.ErrMintMismatch.WithDetails(map[string]any{
			"account":  key.String(),
			"mint":     acct.Mint.String(),
			"expected": mintKey.String(),
		})
	}
	return acct, nil
}

func (p *Program) storeMint(ic *runtime.InvokeContext, key types.Pubkey, mint *Mint) error {
	data, err := mint.Encode()
	if err != nil {
		return err
	}
	return ic.Store(key, data)
}

func (p *Program) storeAccount(ic *runtime.InvokeContext, key types.Pubkey, acct *Account) error {
	data, err := acct.Encode()
	if err != nil {
		return err
	}
	return ic.Store(key, data)
}
