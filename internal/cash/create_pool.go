package cash

import (
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
)

// createPool provisions the base lending pool for (amm, mint_a): the pool
// record, the receipt and cash mints, and the base custody account.
func (p *Program) createPool(ic *runtime.InvokeContext) error {
	accts, err := parseCreatePoolAccounts(ic)
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
		check{"pool", accts.Pool, set.Pool},
		check{"pool_authority", accts.Authority, set.Authority},
		check{"base_custody", accts.BaseCustody, set.BaseCustody},
		check{"receipt_mint", accts.ReceiptMint, set.ReceiptMint},
		check{"cash_mint", accts.CashMint, set.CashMint},
	); err != nil {
		return err
	}
	if err := requireMint(ic, "mint_a", accts.MintA); err != nil {
		return err
	}

	pool := &state.Pool{Amm: accts.Amm, MintA: accts.MintA, PoolType: state.PoolTypeBase}
	data, err := pool.Encode()
	if err != nil {
		return err
	}
	if err := ic.Create(accts.Pool, data); err != nil {
		return err
	}

	authorityKey := set.Authority.Address
	if err := ic.Invoke(
		token.NewInitializeMintInstruction(set.ReceiptMint.Address, MintDecimals, authorityKey, authorityKey),
		set.ReceiptMint.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ic.Invoke(
		token.NewInitializeMintInstruction(set.CashMint.Address, MintDecimals, authorityKey, authorityKey),
		set.CashMint.SignerSeeds(),
	); err != nil {
		return err
	}
	if err := ensureCustody(ic, "base_custody", accts.BaseCustody, accts.MintA, authorityKey); err != nil {
		return err
	}

	p.logger.Debug("pool created", "pool", accts.Pool.String(), "mint_a", accts.MintA.String())
	return emit(ic, EventPoolCreated, &PoolCreatedEvent{
		Pool:      accts.Pool,
		Amm:       accts.Amm,
		MintA:     accts.MintA,
		Authority: authorityKey,
		PoolType:  uint64(state.PoolTypeBase),
	})
}
