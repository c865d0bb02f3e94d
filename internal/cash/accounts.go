package cash

import (
	"github.com/lugondev/go-cash/internal/authority"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/pkg/types"
)

// CreateAmmAccounts are the accounts of create_amm.
type CreateAmmAccounts struct {
	Amm   types.Pubkey
	Admin types.Pubkey
	Payer types.Pubkey
}

func (a CreateAmmAccounts) Metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.Meta(a.Amm).Writable(),
		types.Meta(a.Admin),
		types.Meta(a.Payer).Signer(),
	}
}

// CreatePoolAccounts are the accounts of create_pool_1.
type CreatePoolAccounts struct {
	Amm         types.Pubkey
	Pool        types.Pubkey
	Authority   types.Pubkey
	MintA       types.Pubkey
	BaseCustody types.Pubkey
	ReceiptMint types.Pubkey
	CashMint    types.Pubkey
	Admin       types.Pubkey
	Payer       types.Pubkey
}

func (a CreatePoolAccounts) Metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.Meta(a.Amm),
		types.Meta(a.Pool).Writable(),
		types.Meta(a.Authority),
		types.Meta(a.MintA),
		types.Meta(a.BaseCustody).Writable(),
		types.Meta(a.ReceiptMint).Writable(),
		types.Meta(a.CashMint).Writable(),
		types.Meta(a.Admin),
		types.Meta(a.Payer).Signer(),
	}
}

// CreateCashPoolAccounts are the accounts of create_cash_pool.
type CreateCashPoolAccounts struct {
	Amm         types.Pubkey
	CashPool    types.Pubkey
	Authority   types.Pubkey
	MintA       types.Pubkey
	CashMint    types.Pubkey
	ScashMint   types.Pubkey
	CashCustody types.Pubkey
	Admin       types.Pubkey
	Payer       types.Pubkey
}

func (a CreateCashPoolAccounts) Metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.Meta(a.Amm),
		types.Meta(a.CashPool).Writable(),
		types.Meta(a.Authority),
		types.Meta(a.MintA),
		types.Meta(a.CashMint),
		types.Meta(a.ScashMint).Writable(),
		types.Meta(a.CashCustody).Writable(),
		types.Meta(a.Admin),
		types.Meta(a.Payer).Signer(),
	}
}

// LendAccounts are the accounts of lend and redeem.
type LendAccounts struct {
	Pool            types.Pubkey
	Authority       types.Pubkey
	MintA           types.Pubkey
	BaseCustody     types.Pubkey
	ReceiptMint     types.Pubkey
	CashMint        types.Pubkey
	Lender          types.Pubkey
	LenderBase      types.Pubkey
	LenderAuthority types.Pubkey
	ReceiptSlot     types.Pubkey
	LenderCash      types.Pubkey
}

func (a LendAccounts) Metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.Meta(a.Pool),
		types.Meta(a.Authority),
		types.Meta(a.MintA),
		types.Meta(a.BaseCustody).Writable(),
		types.Meta(a.ReceiptMint).Writable(),
		types.Meta(a.CashMint).Writable(),
		types.Meta(a.Lender).Signer(),
		types.Meta(a.LenderBase).Writable(),
		types.Meta(a.LenderAuthority),
		types.Meta(a.ReceiptSlot).Writable(),
		types.Meta(a.LenderCash).Writable(),
	}
}

// LendCashAccounts are the accounts of lend_cash and redeem_cash.
type LendCashAccounts struct {
	CashPool    types.Pubkey
	Authority   types.Pubkey
	CashMint    types.Pubkey
	ScashMint   types.Pubkey
	CashCustody types.Pubkey
	Lender      types.Pubkey
	LenderCash  types.Pubkey
	LenderScash types.Pubkey
}

func (a LendCashAccounts) Metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.Meta(a.CashPool),
		types.Meta(a.Authority),
		types.Meta(a.CashMint),
		types.Meta(a.ScashMint).Writable(),
		types.Meta(a.CashCustody).Writable(),
		types.Meta(a.Lender).Signer(),
		types.Meta(a.LenderCash).Writable(),
		types.Meta(a.LenderScash).Writable(),
	}
}

// DeriveCreateAmmAccounts fills create_amm accounts for id.
func DeriveCreateAmmAccounts(d *authority.Deriver, id, admin, payer types.Pubkey) (CreateAmmAccounts, error) {
	amm, err := d.Amm(id)
	if err != nil {
		return CreateAmmAccounts{}, err
	}
	return CreateAmmAccounts{Amm: amm.Address, Admin: admin, Payer: payer}, nil
}

// DeriveCreatePoolAccounts fills create_pool_1 accounts for (amm, mintA).
// admin must be the AMM's admin key; only payer signs.
func DeriveCreatePoolAccounts(d *authority.Deriver, amm, mintA, admin, payer types.Pubkey) (CreatePoolAccounts, error) {
	set, err := d.PoolSet(amm, mintA)
	if err != nil {
		return CreatePoolAccounts{}, err
	}
	return CreatePoolAccounts{
		Amm:         amm,
		Pool:        set.Pool.Address,
		Authority:   set.Authority.Address,
		MintA:       mintA,
		BaseCustody: set.BaseCustody.Address,
		ReceiptMint: set.ReceiptMint.Address,
		CashMint:    set.CashMint.Address,
		Admin:       admin,
		Payer:       payer,
	}, nil
}

// DeriveCreateCashPoolAccounts fills create_cash_pool accounts for (amm, mintA).
func DeriveCreateCashPoolAccounts(d *authority.Deriver, amm, mintA, admin, payer types.Pubkey) (CreateCashPoolAccounts, error) {
	set, err := d.PoolSet(amm, mintA)
	if err != nil {
		return CreateCashPoolAccounts{}, err
	}
	return CreateCashPoolAccounts{
		Amm:         amm,
		CashPool:    set.CashPool.Address,
		Authority:   set.Authority.Address,
		MintA:       mintA,
		CashMint:    set.CashMint.Address,
		ScashMint:   set.ScashMint.Address,
		CashCustody: set.CashCustody.Address,
		Admin:       admin,
		Payer:       payer,
	}, nil
}

// DeriveLendAccounts fills lend and redeem accounts for lender.
func DeriveLendAccounts(d *authority.Deriver, amm, mintA, lender types.Pubkey) (LendAccounts, error) {
	set, err := d.PoolSet(amm, mintA)
	if err != nil {
		return LendAccounts{}, err
	}
	ls, err := d.LenderSet(set, lender)
	if err != nil {
		return LendAccounts{}, err
	}
	return LendAccounts{
		Pool:            set.Pool.Address,
		Authority:       set.Authority.Address,
		MintA:           mintA,
		BaseCustody:     set.BaseCustody.Address,
		ReceiptMint:     set.ReceiptMint.Address,
		CashMint:        set.CashMint.Address,
		Lender:          lender,
		LenderBase:      ls.BaseAccount.Address,
		LenderAuthority: ls.Authority.Address,
		ReceiptSlot:     ls.ReceiptSlot.Address,
		LenderCash:      ls.CashAccount.Address,
	}, nil
}

// DeriveLendCashAccounts fills lend_cash and redeem_cash accounts for lender.
func DeriveLendCashAccounts(d *authority.Deriver, amm, mintA, lender types.Pubkey) (LendCashAccounts, error) {
	set, err := d.PoolSet(amm, mintA)
	if err != nil {
		return LendCashAccounts{}, err
	}
	ls, err := d.LenderSet(set, lender)
	if err != nil {
		return LendCashAccounts{}, err
	}
	return LendCashAccounts{
		CashPool:    set.CashPool.Address,
		Authority:   set.Authority.Address,
		CashMint:    set.CashMint.Address,
		ScashMint:   set.ScashMint.Address,
		CashCustody: set.CashCustody.Address,
		Lender:      lender,
		LenderCash:  ls.CashAccount.Address,
		LenderScash: ls.ScashAccount.Address,
	}, nil
}

// keys returns the first n account keys of the instruction.
func keys(ic *runtime.InvokeContext, n int) ([]types.Pubkey, error) {
	metas := ic.Accounts()
	if len(metas) < n {
		return nil, cerrors.ErrNotEnoughAccounts.WithDetails(map[string]any{
			"want": n,
			"got":  len(metas),
		})
	}
	out := make([]types.Pubkey, n)
	for i := range out {
		out[i] = metas[i].Pubkey
	}
	return out, nil
}

func parseCreateAmmAccounts(ic *runtime.InvokeContext) (CreateAmmAccounts, error) {
	k, err := keys(ic, 3)
	if err != nil {
		return CreateAmmAccounts{}, err
	}
	return CreateAmmAccounts{Amm: k[0], Admin: k[1], Payer: k[2]}, nil
}

func parseCreatePoolAccounts(ic *runtime.InvokeContext) (CreatePoolAccounts, error) {
	k, err := keys(ic, 9)
	if err != nil {
		return CreatePoolAccounts{}, err
	}
	return CreatePoolAccounts{
		Amm: k[0], Pool: k[1], Authority: k[2], MintA: k[3],
		BaseCustody: k[4], ReceiptMint: k[5], CashMint: k[6], Admin: k[7], Payer: k[8],
	}, nil
}

func parseCreateCashPoolAccounts(ic *runtime.InvokeContext) (CreateCashPoolAccounts, error) {
	k, err := keys(ic, 9)
	if err != nil {
		return CreateCashPoolAccounts{}, err
	}
	return CreateCashPoolAccounts{
		Amm: k[0], CashPool: k[1], Authority: k[2], MintA: k[3],
		CashMint: k[4], ScashMint: k[5], CashCustody: k[6], Admin: k[7], Payer: k[8],
	}, nil
}

func parseLendAccounts(ic *runtime.InvokeContext) (LendAccounts, error) {
	k, err := keys(ic, 11)
	if err != nil {
		return LendAccounts{}, err
	}
	return LendAccounts{
		Pool: k[0], Authority: k[1], MintA: k[2], BaseCustody: k[3],
		ReceiptMint: k[4], CashMint: k[5], Lender: k[6], LenderBase: k[7],
		LenderAuthority: k[8], ReceiptSlot: k[9], LenderCash: k[10],
	}, nil
}

func parseLendCashAccounts(ic *runtime.InvokeContext) (LendCashAccounts, error) {
	k, err := keys(ic, 8)
	if err != nil {
		return LendCashAccounts{}, err
	}
	return LendCashAccounts{
		CashPool: k[0], Authority: k[1], CashMint: k[2], ScashMint: k[3],
		CashCustody: k[4], Lender: k[5], LenderCash: k[6], LenderScash: k[7],
	}, nil
}

// check is one presented-versus-derived comparison.
type check struct {
	what     string
	got      types.Pubkey
	expected authority.Derived
}

func verifyAll(checks ...check) error {
	for _, c := range checks {
		if err := authority.Verify(c.what, c.got, c.expected); err != nil {
			return err
		}
	}
	return nil
}

// verifyLendAccounts re-derives every lend/redeem account from the pool
// record and the lender key.
func (p *Program) verifyLendAccounts(pool *state.Pool, accts LendAccounts) (*authority.PoolSet, *authority.LenderSet, error) {
	set, err := p.deriver.PoolSet(pool.Amm, pool.MintA)
	if err != nil {
		return nil, nil, err
	}
	lender, err := p.deriver.LenderSet(set, accts.Lender)
	if err != nil {
		return nil, nil, err
	}
	if err := authority.VerifyAddress("mint_a", accts.MintA, pool.MintA); err != nil {
		return nil, nil, err
	}
	err = verifyAll(
		check{"pool", accts.Pool, set.Pool},
		check{"pool_authority", accts.Authority, set.Authority},
		check{"base_custody", accts.BaseCustody, set.BaseCustody},
		check{"receipt_mint", accts.ReceiptMint, set.ReceiptMint},
		check{"cash_mint", accts.CashMint, set.CashMint},
		check{"lender_base", accts.LenderBase, lender.BaseAccount},
		check{"lender_authority", accts.LenderAuthority, lender.Authority},
		check{"receipt_slot", accts.ReceiptSlot, lender.ReceiptSlot},
		check{"lender_cash", accts.LenderCash, lender.CashAccount},
	)
	if err != nil {
		return nil, nil, err
	}
	return set, lender, nil
}

// verifyLendCashAccounts re-derives every lend_cash/redeem_cash account from
// the cash pool record and the lender key.
func (p *Program) verifyLendCashAccounts(pool *state.Pool, accts LendCashAccounts) (*authority.PoolSet, *authority.LenderSet, error) {
	set, err := p.deriver.PoolSet(pool.Amm, pool.MintA)
	if err != nil {
		return nil, nil, err
	}
	lender, err := p.deriver.LenderSet(set, accts.Lender)
	if err != nil {
		return nil, nil, err
	}
	err = verifyAll(
		check{"cash_pool", accts.CashPool, set.CashPool},
		check{"pool_authority", accts.Authority, set.Authority},
		check{"cash_mint", accts.CashMint, set.CashMint},
		check{"scash_mint", accts.ScashMint, set.ScashMint},
		check{"cash_custody", accts.CashCustody, set.CashCustody},
		check{"lender_cash", accts.LenderCash, lender.CashAccount},
		check{"lender_scash", accts.LenderScash, lender.ScashAccount},
	)
	if err != nil {
		return nil, nil, err
	}
	return set, lender, nil
}
