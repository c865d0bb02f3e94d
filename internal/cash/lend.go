package cash

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// lend moves amount of the base asset into custody, mints amount receipt into
// the lender authority's slot and floor(amount*100/120) cash to the lender.
// Both claim accounts are left locked.
func (p *Program) lend(ic *runtime.InvokeContext, amount uint64) error {
	if amount == 0 {
		return cerrors.ErrInvalidAmount
	}
	accts, err := parseLendAccounts(ic)
	if err != nil {
		return err
	}
	if err := requireSigner(ic, "lender", accts.Lender); err != nil {
		return err
	}

	pool, err := p.loadPool(ic, accts.Pool, state.PoolTypeBase)
	if err != nil {
		return err
	}
	set, lender, err := p.verifyLendAccounts(pool, accts)
	if err != nil {
		return err
	}

	cash, err := CashForPrincipal(amount)
	if err != nil {
		return err
	}

	base, err := tokenAccount(ic, accts.LenderBase)
	if err != nil {
		return err
	}
	if base.Amount < amount {
		return cerrors.InsufficientBalance(base.Amount, amount)
	}

	if p.rejectExistingLending {
		if err := rejectExisting(ic, accts); err != nil {
			return err
		}
	}

	if err := ensureTokenAccount(ic, accts.ReceiptSlot, accts.ReceiptMint, lender.Authority.Address); err != nil {
		return err
	}
	if err := ensureTokenAccount(ic, accts.LenderCash, accts.CashMint, accts.Lender); err != nil {
		return err
	}

	if err := ic.Invoke(token.NewTransferInstruction(accts.LenderBase, accts.BaseCustody, accts.MintA, accts.Lender, amount)); err != nil {
		return err
	}
	if err := mintAndLock(ic, accts.ReceiptMint, accts.ReceiptSlot, set.Authority, amount); err != nil {
		return err
	}
	if err := mintAndLock(ic, accts.CashMint, accts.LenderCash, set.Authority, cash); err != nil {
		return err
	}

	ic.Log("lent %d, minted %d cash", amount, cash)
	return emit(ic, EventLent, &LentEvent{
		Pool:   accts.Pool,
		Lender: accts.Lender,
		Amount: amount,
		Cash:   cash,
	})
}

func rejectExisting(ic *runtime.InvokeContext, accts LendAccounts) error {
	ok, err := ic.Exists(accts.ReceiptSlot)
	if err != nil || !ok {
		return err
	}
	slot, err := tokenAccount(ic, accts.ReceiptSlot)
	if err != nil {
		return err
	}
	if slot.Amount > 0 {
		return cerrors.ErrExistingLending.WithDetails(map[string]any{"receipt": slot.Amount})
	}
	return nil
}
