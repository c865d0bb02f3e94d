package cash

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// lendCash moves amount cash from the lender into the cash custody and mints
// the same amount of scash to the lender, locked.
//
// The lender's cash account is locked by lend, so the transfer carries the
// pool authority as co-signer in its role as freeze authority.
func (p *Program) lendCash(ic *runtime.InvokeContext, amount uint64) error {
	if amount == 0 {
		return cerrors.ErrInvalidAmount
	}
	accts, err := parseLendCashAccounts(ic)
	if err != nil {
		return err
	}
	if err := requireSigner(ic, "lender", accts.Lender); err != nil {
		return err
	}

	pool, err := p.loadPool(ic, accts.CashPool, state.PoolTypeCash)
	if err != nil {
		return err
	}
	set, _, err := p.verifyLendCashAccounts(pool, accts)
	if err != nil {
		return err
	}

	held, err := tokenAccount(ic, accts.LenderCash)
	if err != nil {
		return err
	}
	if held.Amount < amount {
		return cerrors.InsufficientBalance(held.Amount, amount)
	}

	if err := ensureTokenAccount(ic, accts.LenderScash, accts.ScashMint, accts.Lender); err != nil {
		return err
	}

	if err := ic.Invoke(
		token.NewTransferInstruction(accts.LenderCash, accts.CashCustody, accts.CashMint, accts.Lender, amount, set.Authority.Address),
		set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := mintAndLock(ic, accts.ScashMint, accts.LenderScash, set.Authority, amount); err != nil {
		return err
	}

	ic.Log("lent %d cash", amount)
	return emit(ic, EventCashLent, &CashLentEvent{
		CashPool: accts.CashPool,
		Lender:   accts.Lender,
		Amount:   amount,
	})
}
