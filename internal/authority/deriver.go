package authority

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

// Deriver derives every protocol address for one program id.
type Deriver struct {
	programID types.Pubkey
	roles     *Registry
}

// NewDeriver returns a Deriver for programID over DefaultRegistry.
func NewDeriver(programID types.Pubkey) *Deriver {
	return &Deriver{programID: programID, roles: DefaultRegistry}
}

// ProgramID returns the program the addresses are derived under.
func (d *Deriver) ProgramID() types.Pubkey {
	return d.programID
}

// Amm derives the AMM record address from its identity key.
func (d *Deriver) Amm(id types.Pubkey) (Derived, error) {
	return FindAddress([][]byte{id.Bytes()}, d.programID)
}

// Pool derives the base lending pool record for (amm, mintA).
func (d *Deriver) Pool(amm, mintA types.Pubkey) (Derived, error) {
	return FindAddress([][]byte{amm.Bytes(), mintA.Bytes()}, d.programID)
}

// CashPool derives the cash pool record for (amm, mintA).
func (d *Deriver) CashPool(amm, mintA types.Pubkey) (Derived, error) {
	return d.scoped(amm, mintA, RoleCashPool.Name)
}

// PoolAuthority derives the mint, freeze and custody authority of the pools
// for (amm, mintA).
func (d *Deriver) PoolAuthority(amm, mintA types.Pubkey) (Derived, error) {
	return d.scoped(amm, mintA, RoleAuthority.Name)
}

// LenderAuthority derives the authority that custodies lender's receipt
// tokens in pool.
func (d *Deriver) LenderAuthority(pool, lender types.Pubkey) (Derived, error) {
	tag, err := d.roleSeed(RoleAuthority.Name)
	if err != nil {
		return Derived{}, err
	}
	return FindAddress([][]byte{pool.Bytes(), lender.Bytes(), tag}, d.programID)
}

// ReceiptMint derives the receipt token mint for (amm, mintA).
func (d *Deriver) ReceiptMint(amm, mintA types.Pubkey) (Derived, error) {
	return d.scoped(amm, mintA, RoleLendingToken.Name)
}

// CashMint derives the cash token mint for (amm, mintA).
func (d *Deriver) CashMint(amm, mintA types.Pubkey) (Derived, error) {
	return d.scoped(amm, mintA, RoleCashToken.Name)
}

// ScashMint derives the scash token mint for (amm, mintA).
func (d *Deriver) ScashMint(amm, mintA types.Pubkey) (Derived, error) {
	return d.scoped(amm, mintA, RoleScashToken.Name)
}

func (d *Deriver) scoped(amm, mintA types.Pubkey, role string) (Derived, error) {
	tag, err := d.roleSeed(role)
	if err != nil {
		return Derived{}, err
	}
	return FindAddress([][]byte{amm.Bytes(), mintA.Bytes(), tag}, d.programID)
}

// roleSeed returns the tag seed of the named role.
func (d *Deriver) roleSeed(name string) ([]byte, error) {
	role, ok := d.roles.Lookup(name)
	if !ok {
		return nil, cerrors.ErrInvalidSeeds.WithDetails(map[string]any{"reason": "unknown role " + name})
	}
	return role.Seed(), nil
}

// PoolSet is every address scoped to one (AMM, base asset) pair.
type PoolSet struct {
	Amm         types.Pubkey
	MintA       types.Pubkey
	Pool        Derived
	CashPool    Derived
	Authority   Derived
	ReceiptMint Derived
	CashMint    Derived
	ScashMint   Derived
	// BaseCustody holds locked principal.
	BaseCustody Derived
	// CashCustody holds cash locked in the cash pool.
	CashCustody Derived
}

// PoolSet derives the full pool address set for (amm, mintA).
func (d *Deriver) PoolSet(amm, mintA types.Pubkey) (*PoolSet, error) {
	set := &PoolSet{Amm: amm, MintA: mintA}

	var err error
	if set.Pool, err = d.Pool(amm, mintA); err != nil {
		return nil, err
	}
	if set.CashPool, err = d.CashPool(amm, mintA); err != nil {
		return nil, err
	}
	if set.Authority, err = d.PoolAuthority(amm, mintA); err != nil {
		return nil, err
	}
	if set.ReceiptMint, err = d.ReceiptMint(amm, mintA); err != nil {
		return nil, err
	}
	if set.CashMint, err = d.CashMint(amm, mintA); err != nil {
		return nil, err
	}
	if set.ScashMint, err = d.ScashMint(amm, mintA); err != nil {
		return nil, err
	}
	if set.BaseCustody, err = AssociatedTokenAddress(set.Authority.Address, mintA); err != nil {
		return nil, err
	}
	if set.CashCustody, err = AssociatedTokenAddress(set.Authority.Address, set.CashMint.Address); err != nil {
		return nil, err
	}
	return set, nil
}

// LenderSet is every address scoped to one lender in one pool.
type LenderSet struct {
	Lender    types.Pubkey
	Authority Derived
	// ReceiptSlot is the receipt token account owned by the lender authority.
	ReceiptSlot  Derived
	BaseAccount  Derived
	CashAccount  Derived
	ScashAccount Derived
}

// LenderSet derives the lender's accounts for pool.
func (d *Deriver) LenderSet(pool *PoolSet, lender types.Pubkey) (*LenderSet, error) {
	set := &LenderSet{Lender: lender}

	var err error
	if set.Authority, err = d.LenderAuthority(pool.Pool.Address, lender); err != nil {
		return nil, err
	}
	if set.ReceiptSlot, err = AssociatedTokenAddress(set.Authority.Address, pool.ReceiptMint.Address); err != nil {
		return nil, err
	}
	if set.BaseAccount, err = AssociatedTokenAddress(lender, pool.MintA); err != nil {
		return nil, err
	}
	if set.CashAccount, err = AssociatedTokenAddress(lender, pool.CashMint.Address); err != nil {
		return nil, err
	}
	if set.ScashAccount, err = AssociatedTokenAddress(lender, pool.ScashMint.Address); err != nil {
		return nil, err
	}
	return set, nil
}
