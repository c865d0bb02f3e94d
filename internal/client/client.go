// Package client builds, signs and submits lending protocol transactions.
//
// Callers name a pool by (amm, base mint) and a lender by key; every other
// account is derived here, so custody, mint and slot addresses are never
// supplied by hand.
package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/cash"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/ledger"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/types"
)

// Submitter executes signed transactions.
type Submitter interface {
	Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error)
}

// Reader reads committed accounts.
type Reader interface {
	Get(addr types.Pubkey) (*ledger.Record, error)
	Exists(addr types.Pubkey) (bool, error)
}

// Client talks to one deployment of the lending program.
type Client struct {
	programID types.Pubkey
	deriver   *authority.Deriver
	submitter Submitter
	reader    Reader
	nonce     atomic.Uint64
}

// New creates a client for the program at programID.
func New(programID types.Pubkey, submitter Submitter, reader Reader) *Client {
	c := &Client{
		programID: programID,
		deriver:   authority.NewDeriver(programID),
		submitter: submitter,
		reader:    reader,
	}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c
}

// NewLocal creates a client over an in-process runtime.
func NewLocal(programID types.Pubkey, rt *runtime.Runtime) *Client {
	return New(programID, rt, rt.Ledger())
}

// ProgramID returns the program address.
func (c *Client) ProgramID() types.Pubkey { return c.programID }

// Deriver returns the address deriver for the program.
func (c *Client) Deriver() *authority.Deriver { return c.deriver }

// Send signs ixs with signers and submits them as one transaction.
func (c *Client) Send(ctx context.Context, signers []*Wallet, ixs ...types.Instruction) (*runtime.Receipt, error) {
	tx := runtime.NewTransaction(c.nonce.Add(1), ixs...)
	if err := tx.Sign(keysOf(signers...)...); err != nil {
		return nil, err
	}
	return c.submitter.Submit(ctx, tx)
}

// CreateMint initializes a token mint at mint's address. freezeAuthority may
// be the zero key.
func (c *Client) CreateMint(ctx context.Context, mint *Wallet, decimals uint8, mintAuthority, freezeAuthority types.Pubkey) (*runtime.Receipt, error) {
	return c.Send(ctx, []*Wallet{mint},
		token.NewInitializeMintInstruction(mint.PublicKey(), decimals, mintAuthority, freezeAuthority))
}

// MintTo mints amount of mint to owner's associated account, creating the
// account first when needed.
func (c *Client) MintTo(ctx context.Context, mintAuthority *Wallet, mint, owner types.Pubkey, amount uint64) (*runtime.Receipt, error) {
	ata, err := authority.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	var ixs []types.Instruction
	ok, err := c.reader.Exists(ata.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		ixs = append(ixs, token.NewInitializeAccountInstruction(ata.Address, mint, owner))
	}
	ixs = append(ixs, token.NewMintToInstruction(mint, ata.Address, mintAuthority.PublicKey(), amount))
	return c.Send(ctx, []*Wallet{mintAuthority}, ixs...)
}

// Transfer moves amount of mint between two owners' associated accounts.
func (c *Client) Transfer(ctx context.Context, from *Wallet, to, mint types.Pubkey, amount uint64) (*runtime.Receipt, error) {
	src, err := authority.AssociatedTokenAddress(from.PublicKey(), mint)
	if err != nil {
		return nil, err
	}
	dst, err := authority.AssociatedTokenAddress(to, mint)
	if err != nil {
		return nil, err
	}
	var ixs []types.Instruction
	ok, err := c.reader.Exists(dst.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		ixs = append(ixs, token.NewInitializeAccountInstruction(dst.Address, mint, to))
	}
	ixs = append(ixs, token.NewTransferInstruction(src.Address, dst.Address, mint, from.PublicKey(), amount))
	return c.Send(ctx, []*Wallet{from}, ixs...)
}

// CreateAmm records an AMM under id with admin as its administrator. It
// returns the AMM address.
func (c *Client) CreateAmm(ctx context.Context, admin *Wallet, id types.Pubkey, liquidityFee, protocolFee uint16) (types.Pubkey, *runtime.Receipt, error) {
	accts, err := cash.DeriveCreateAmmAccounts(c.deriver, id, admin.PublicKey(), admin.PublicKey())
	if err != nil {
		return types.Pubkey{}, nil, err
	}
	receipt, err := c.Send(ctx, []*Wallet{admin}, cash.NewCreateAmmInstruction(c.programID, accts, cash.CreateAmmArgs{
		ID:                    id,
		LiquidityFee:          liquidityFee,
		ProtocolFeePercentage: protocolFee,
	}))
	return accts.Amm, receipt, err
}

// CreatePool provisions the base lending pool for (amm, mintA). The AMM's
// admin key is read from the ledger and presented unsigned; payer signs.
func (c *Client) CreatePool(ctx context.Context, payer *Wallet, amm, mintA types.Pubkey) (*runtime.Receipt, error) {
	admin, err := c.ammAdmin(amm)
	if err != nil {
		return nil, err
	}
	accts, err := cash.DeriveCreatePoolAccounts(c.deriver, amm, mintA, admin, payer.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{payer}, cash.NewCreatePoolInstruction(c.programID, accts))
}

// CreateCashPool provisions the cash pool for (amm, mintA).
func (c *Client) CreateCashPool(ctx context.Context, payer *Wallet, amm, mintA types.Pubkey) (*runtime.Receipt, error) {
	admin, err := c.ammAdmin(amm)
	if err != nil {
		return nil, err
	}
	accts, err := cash.DeriveCreateCashPoolAccounts(c.deriver, amm, mintA, admin, payer.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{payer}, cash.NewCreateCashPoolInstruction(c.programID, accts))
}

func (c *Client) ammAdmin(amm types.Pubkey) (types.Pubkey, error) {
	record, err := c.Amm(amm)
	if err != nil {
		return types.Pubkey{}, err
	}
	return record.Admin, nil
}

// Lend locks amount of the base asset.
func (c *Client) Lend(ctx context.Context, lender *Wallet, amm, mintA types.Pubkey, amount uint64) (*runtime.Receipt, error) {
	accts, err := cash.DeriveLendAccounts(c.deriver, amm, mintA, lender.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{lender}, cash.NewLendInstruction(c.programID, accts, amount))
}

// Redeem unlocks the lender's whole position.
func (c *Client) Redeem(ctx context.Context, lender *Wallet, amm, mintA types.Pubkey) (*runtime.Receipt, error) {
	accts, err := cash.DeriveLendAccounts(c.deriver, amm, mintA, lender.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{lender}, cash.NewRedeemInstruction(c.programID, accts))
}

// LendCash locks amount cash into the cash pool.
func (c *Client) LendCash(ctx context.Context, lender *Wallet, amm, mintA types.Pubkey, amount uint64) (*runtime.Receipt, error) {
	accts, err := cash.DeriveLendCashAccounts(c.deriver, amm, mintA, lender.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{lender}, cash.NewLendCashInstruction(c.programID, accts, amount))
}

// RedeemCash unlocks the lender's whole scash balance.
func (c *Client) RedeemCash(ctx context.Context, lender *Wallet, amm, mintA types.Pubkey) (*runtime.Receipt, error) {
	accts, err := cash.DeriveLendCashAccounts(c.deriver, amm, mintA, lender.PublicKey())
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, []*Wallet{lender}, cash.NewRedeemCashInstruction(c.programID, accts))
}

// TokenAccount reads the token account at addr.
func (c *Client) TokenAccount(addr types.Pubkey) (*token.Account, error) {
	rec, err := c.reader.Get(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(token.ProgramID) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"address": addr.String()})
	}
	return token.DecodeAccount(rec.Data)
}

// Mint reads the mint at addr.
func (c *Client) Mint(addr types.Pubkey) (*token.Mint, error) {
	rec, err := c.reader.Get(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(token.ProgramID) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"address": addr.String()})
	}
	return token.DecodeMint(rec.Data)
}

// Balance returns owner's balance of mint, zero when the account does not
// exist.
func (c *Client) Balance(owner, mint types.Pubkey) (uint64, error) {
	ata, err := authority.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	return c.balanceAt(ata.Address)
}

func (c *Client) balanceAt(addr types.Pubkey) (uint64, error) {
	ok, err := c.reader.Exists(addr)
	if err != nil || !ok {
		return 0, err
	}
	acct, err := c.TokenAccount(addr)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// Amm reads the AMM at addr.
func (c *Client) Amm(addr types.Pubkey) (*state.Amm, error) {
	rec, err := c.reader.Get(addr)
	if err != nil {
		return nil, err
	}
	return state.DecodeAmm(rec.Data)
}

// Pool reads the base pool for (amm, mintA).
func (c *Client) Pool(amm, mintA types.Pubkey) (*state.Pool, error) {
	d, err := c.deriver.Pool(amm, mintA)
	if err != nil {
		return nil, err
	}
	rec, err := c.reader.Get(d.Address)
	if err != nil {
		return nil, err
	}
	return state.DecodePool(rec.Data)
}
