// Package token is the fungible-token program the lending protocol calls
// into: mints with a supply and a mint/freeze authority, and token accounts
// holding a balance for one owner.
//
// A token account can be locked by its mint's freeze authority. While locked,
// tokens can still be burned by the owner, but moving tokens in or out by
// transfer or mint requires the freeze authority to sign as well.
package token

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

// ProgramID is the token program's address.
var ProgramID = solana.TokenProgramID

var (
	MintDiscriminator    = discriminator.ForAccount("Mint")
	AccountDiscriminator = discriminator.ForAccount("TokenAccount")
)

// Mint is a token mint.
type Mint struct {
	MintAuthority   types.Pubkey `json:"mint_authority"`
	Supply          uint64       `json:"supply"`
	Decimals        uint8        `json:"decimals"`
	IsInitialized   bool         `json:"is_initialized"`
	FreezeAuthority types.Pubkey `json:"freeze_authority"`
}

// Account is a token balance held by Owner.
type Account struct {
	Mint   types.Pubkey `json:"mint"`
	Owner  types.Pubkey `json:"owner"`
	Amount uint64       `json:"amount"`
	Locked bool         `json:"locked"`
}

// Encode returns the stored form of the mint.
func (m *Mint) Encode() ([]byte, error) {
	return encode(MintDiscriminator, m)
}

// Encode returns the stored form of the account.
func (a *Account) Encode() ([]byte, error) {
	return encode(AccountDiscriminator, a)
}

// DecodeMint parses stored mint data.
func DecodeMint(data []byte) (*Mint, error) {
	var m Mint
	if err := decode(MintDiscriminator, "Mint", data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeAccount parses stored token account data.
func DecodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := decode(AccountDiscriminator, "TokenAccount", data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func encode(d discriminator.Discriminator, v any) ([]byte, error) {
	body, err := bin.MarshalBorsh(v)
	if err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return d.Prefix(body), nil
}

func decode(d discriminator.Discriminator, name string, data []byte, v any) error {
	got, err := discriminator.FromBytes(data)
	if err != nil {
		return cerrors.ErrInvalidAccountData.WithCause(err)
	}
	if got != d {
		return cerrors.ErrInvalidAccountData.WithCause(fmt.Errorf("not a %s account", name))
	}
	if err := bin.UnmarshalBorsh(v, data[discriminator.Size:]); err != nil {
		return cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return nil
}
