package client

import (
	"fmt"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/cash"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

// PoolStats aggregates one (amm, base mint) pair. Pool records do not track
// balances, so every figure is read from custody accounts and mint supplies.
type PoolStats struct {
	Amm            types.Pubkey `json:"amm" yaml:"amm"`
	MintA          types.Pubkey `json:"mint_a" yaml:"mint_a"`
	Pool           types.Pubkey `json:"pool" yaml:"pool"`
	CashPool       types.Pubkey `json:"cash_pool" yaml:"cash_pool"`
	Authority      types.Pubkey `json:"authority" yaml:"authority"`
	CashPoolExists bool         `json:"cash_pool_exists" yaml:"cash_pool_exists"`

	LockedPrincipal uint64 `json:"locked_principal" yaml:"locked_principal"`
	ReceiptSupply   uint64 `json:"receipt_supply" yaml:"receipt_supply"`
	CashSupply      uint64 `json:"cash_supply" yaml:"cash_supply"`
	LockedCash      uint64 `json:"locked_cash" yaml:"locked_cash"`
	ScashSupply     uint64 `json:"scash_supply" yaml:"scash_supply"`
}

// PoolStats reads the current figures of a provisioned pool.
func (c *Client) PoolStats(amm, mintA types.Pubkey) (*PoolStats, error) {
	set, err := c.deriver.PoolSet(amm, mintA)
	if err != nil {
		return nil, err
	}
	ok, err := c.reader.Exists(set.Pool.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cerrors.AccountNotFound("pool", set.Pool.Address.String())
	}

	stats := &PoolStats{
		Amm:       amm,
		MintA:     mintA,
		Pool:      set.Pool.Address,
		CashPool:  set.CashPool.Address,
		Authority: set.Authority.Address,
	}
	if stats.LockedPrincipal, err = c.balanceAt(set.BaseCustody.Address); err != nil {
		return nil, err
	}
	if stats.ReceiptSupply, err = c.supply(set.ReceiptMint); err != nil {
		return nil, err
	}
	if stats.CashSupply, err = c.supply(set.CashMint); err != nil {
		return nil, err
	}

	if stats.CashPoolExists, err = c.reader.Exists(set.CashPool.Address); err != nil {
		return nil, err
	}
	if stats.CashPoolExists {
		if stats.LockedCash, err = c.balanceAt(set.CashCustody.Address); err != nil {
			return nil, err
		}
		if stats.ScashSupply, err = c.supply(set.ScashMint); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (c *Client) supply(mint authority.Derived) (uint64, error) {
	m, err := c.Mint(mint.Address)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

// CheckInvariants verifies the pool's supply relations:
//
//	receipt supply == locked principal
//	cash supply    <= floor(receipt supply * 100/120)
//	scash supply   == locked cash
//
// Cash is minted per lend call with rounding down, so its supply can trail
// the ratio applied to the total but never exceed it.
func (c *Client) CheckInvariants(amm, mintA types.Pubkey) error {
	stats, err := c.PoolStats(amm, mintA)
	if err != nil {
		return err
	}
	return stats.Check()
}

// Check verifies the supply relations on already loaded figures.
func (s *PoolStats) Check() error {
	var errs []error
	if s.ReceiptSupply != s.LockedPrincipal {
		errs = append(errs, fmt.Errorf("receipt supply %d != locked principal %d", s.ReceiptSupply, s.LockedPrincipal))
	}
	maxCash, err := cash.CashForPrincipal(s.ReceiptSupply)
	if err != nil {
		errs = append(errs, err)
	} else if s.CashSupply > maxCash {
		errs = append(errs, fmt.Errorf("cash supply %d exceeds %d for receipt supply %d", s.CashSupply, maxCash, s.ReceiptSupply))
	}
	if s.ScashSupply != s.LockedCash {
		errs = append(errs, fmt.Errorf("scash supply %d != locked cash %d", s.ScashSupply, s.LockedCash))
	}
	return cerrors.Join(errs...)
}
