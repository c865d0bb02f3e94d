package cash

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// redeem burns the whole receipt slot r and floor(r*100/120) cash, then pays
// r of the base asset back out of custody.
func (p *Program) redeem(ic *runtime.InvokeContext) error {
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

	slot, err := tokenAccount(ic, accts.ReceiptSlot)
	if err != nil {
		return err
	}
	principal := slot.Amount
	if principal == 0 {
		return cerrors.ErrInvalidAmount.WithDetails(map[string]any{"receipt": 0})
	}
	cash, err := CashForPrincipal(principal)
	if err != nil {
		return err
	}

	// Both claims are locked; the pool authority co-signs as freeze authority.
	if err := ic.Invoke(
		token.NewBurnInstruction(accts.ReceiptSlot, accts.ReceiptMint, lender.Authority.Address, principal, set.Authority.Address),
		lender.Authority.SignerSeeds(), set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ic.Invoke(
		token.NewBurnInstruction(accts.LenderCash, accts.CashMint, accts.Lender, cash, set.Authority.Address),
		set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ic.Invoke(
		token.NewTransferInstruction(accts.BaseCustody, accts.LenderBase, accts.MintA, set.Authority.Address, principal),
		set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}

	ic.Log("redeemed %d, burned %d cash", principal, cash)
	return emit(ic, EventRedeemed, &RedeemedEvent{
		Pool:   accts.Pool,
		Lender: accts.Lender,
		Amount: principal,
		Cash:   cash,
	})
}
