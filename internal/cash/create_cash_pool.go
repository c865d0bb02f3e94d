package cash

import (
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// createCashPool provisions the cash pool for (amm, mint_a). It reuses the
// cash mint created with the base pool and fails with ErrAccountNotFound when
// that mint does not exist.
func (p *Program) createCashPool(ic *runtime.InvokeContext) error {
	accts, err := parseCreateCashPoolAccounts(ic)
	if err != nil {
		return err
	}

	amm, err := p.loadAmm(ic, accts.Amm)
	if err != nil {
		return err
	}
	if err := requireAdmin(ic, amm, accts.Admin, accts.Payer); err != nil {
		return err
	}

	set, err := p.deriver.PoolSet(accts.Amm, accts.MintA)
	if err != nil {
		return err
	}
	if err := verifyAll(
		check{"cash_pool", accts.CashPool, set.CashPool},
		check{"pool_authority", accts.Authority, set.Authority},
		check{"cash_mint", accts.CashMint, set.CashMint},
		check{"scash_mint", accts.ScashMint, set.ScashMint},
		check{"cash_custody", accts.CashCustody, set.CashCustody},
	); err != nil {
		return err
	}
	if err := requireMint(ic, "cash_mint", accts.CashMint); err != nil {
		return err
	}

	pool := &state.Pool{Amm: accts.Amm, MintA: accts.MintA, PoolType: state.PoolTypeCash}
	data, err := pool.Encode()
	if err != nil {
		return err
	}
	if err := ic.Create(accts.CashPool, data); err != nil {
		return err
	}

	authorityKey := set.Authority.Address
	if err := ic.Invoke(
		token.NewInitializeMintInstruction(set.ScashMint.Address, MintDecimals, authorityKey, authorityKey),
		set.ScashMint.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ensureCustody(ic, "cash_custody", accts.CashCustody, accts.CashMint, authorityKey); err != nil {
		return err
	}

	p.logger.Debug("cash pool created", "pool", accts.CashPool.String(), "mint_a", accts.MintA.String())
	return emit(ic, EventPoolCreated, &PoolCreatedEvent{
		Pool:      accts.CashPool,
		Amm:       accts.Amm,
		MintA:     accts.MintA,
		Authority: authorityKey,
		PoolType:  uint64(state.PoolTypeCash),
	})
}
