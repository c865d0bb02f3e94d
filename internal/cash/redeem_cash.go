package cash

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// redeemCash burns the lender's whole scash balance s and returns s cash from
// the cash custody.
func (p *Program) redeemCash(ic *runtime.InvokeContext) error {
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

	scash, err := tokenAccount(ic, accts.LenderScash)
	if err != nil {
		return err
	}
	amount := scash.Amount
	if amount == 0 {
		return cerrors.ErrInvalidAmount.WithDetails(map[string]any{"scash": 0})
	}

	if err := ic.Invoke(
		token.NewBurnInstruction(accts.LenderScash, accts.ScashMint, accts.Lender, amount, set.Authority.Address),
		set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ic.Invoke(
		token.NewTransferInstruction(accts.CashCustody, accts.LenderCash, accts.CashMint, set.Authority.Address, amount),
		set.Authority.SignerSeeds(),
	); err != nil {
		return err
	}

	ic.Log("redeemed %d cash", amount)
	return emit(ic, EventCashRedeemed, &CashRedeemedEvent{
		CashPool: accts.CashPool,
		Lender:   accts.Lender,
		Amount:   amount,
	})
}
