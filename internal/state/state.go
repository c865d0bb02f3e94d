// Package state holds the lending protocol's account records: one Amm per
// deployment id and one Pool per (amm, base asset, pool type).
package state

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

// PoolType distinguishes base lending pools from cash pools.
type PoolType uint64

const (
	PoolTypeBase PoolType = 0
	PoolTypeCash PoolType = 1
)

func (t PoolType) String() string {
	switch t {
	case PoolTypeBase:
		return "base"
	case PoolTypeCash:
		return "cash"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// MaxFeeBps is the largest fee value create_amm accepts.
const MaxFeeBps = 10_000

var (
	AmmDiscriminator  = discriminator.ForAccount("Amm")
	PoolDiscriminator = discriminator.ForAccount("Pool")
)

// Amm is the root configuration record. Fees are stored but not charged.
type Amm struct {
	ID                    types.Pubkey `json:"id" borsh:"id"`
	Admin                 types.Pubkey `json:"admin" borsh:"admin"`
	LiquidityFee          uint16       `json:"liquidity_fee" borsh:"liquidity_fee"`
	ProtocolFeePercentage uint16       `json:"protocol_fee_percentage" borsh:"protocol_fee_percentage"`
}

func (a *Amm) Discriminator() discriminator.Discriminator {
	return AmmDiscriminator
}

// Validate checks the fee fields.
func (a *Amm) Validate() error {
	if a.LiquidityFee > MaxFeeBps || a.ProtocolFeePercentage > MaxFeeBps {
		return cerrors.ErrInvalidFee.WithDetails(map[string]any{
			"liquidity_fee":           a.LiquidityFee,
			"protocol_fee_percentage": a.ProtocolFeePercentage,
			"max":                     MaxFeeBps,
		})
	}
	return nil
}

// Encode returns the stored form of the AMM.
func (a *Amm) Encode() ([]byte, error) {
	return encode(AmmDiscriminator, a)
}

// DecodeAmm parses stored AMM data.
func DecodeAmm(data []byte) (*Amm, error) {
	a := &Amm{}
	if err := decode(AmmDiscriminator, "Amm", data, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Pool records one (amm, base asset) pair. TokenAAmount and TokenBAmount are
// part of the stored layout but are never updated; balances live in the
// custody token accounts.
type Pool struct {
	Amm          types.Pubkey `json:"amm" borsh:"amm"`
	MintA        types.Pubkey `json:"mint_a" borsh:"mint_a"`
	TokenAAmount uint64       `json:"token_a_amount" borsh:"token_a_amount"`
	TokenBAmount uint64       `json:"token_b_amount" borsh:"token_b_amount"`
	PoolType     PoolType     `json:"pool_type" borsh:"pool_type"`
}

func (p *Pool) Discriminator() discriminator.Discriminator {
	return PoolDiscriminator
}

// Encode returns the stored form of the pool.
func (p *Pool) Encode() ([]byte, error) {
	return encode(PoolDiscriminator, p)
}

// DecodePool parses stored pool data.
func DecodePool(data []byte) (*Pool, error) {
	p := &Pool{}
	if err := decode(PoolDiscriminator, "Pool", data, p); err != nil {
		return nil, err
	}
	return p, nil
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
		return cerrors.ErrInvalidAccountData.WithCause(fmt.Errorf("data too short for %s account", name))
	}
	if got != d {
		return cerrors.ErrInvalidAccountData.WithCause(fmt.Errorf("invalid discriminator for %s", name))
	}
	if err := bin.UnmarshalBorsh(v, data[discriminator.Size:]); err != nil {
		return cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return nil
}
