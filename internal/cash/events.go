package cash

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/discriminator"
	"github.com/lugondev/go-cash/pkg/types"
)

// Event names.
const (
	EventAmmCreated   = "AmmCreated"
	EventPoolCreated  = "PoolCreated"
	EventLent         = "Lent"
	EventRedeemed     = "Redeemed"
	EventCashLent     = "CashLent"
	EventCashRedeemed = "CashRedeemed"
)

var eventMatcher = discriminator.MustNewMatcher(discriminator.ForEvent,
	EventAmmCreated,
	EventPoolCreated,
	EventLent,
	EventRedeemed,
	EventCashLent,
	EventCashRedeemed,
)

type AmmCreatedEvent struct {
	Amm                   types.Pubkey `json:"amm"`
	ID                    types.Pubkey `json:"id"`
	Admin                 types.Pubkey `json:"admin"`
	LiquidityFee          uint16       `json:"liquidity_fee"`
	ProtocolFeePercentage uint16       `json:"protocol_fee_percentage"`
}

type PoolCreatedEvent struct {
	Pool      types.Pubkey `json:"pool"`
	Amm       types.Pubkey `json:"amm"`
	MintA     types.Pubkey `json:"mint_a"`
	Authority types.Pubkey `json:"authority"`
	PoolType  uint64       `json:"pool_type"`
}

// LentEvent is emitted by lend. Cash is the amount minted for Amount.
type LentEvent struct {
	Pool   types.Pubkey `json:"pool"`
	Lender types.Pubkey `json:"lender"`
	Amount uint64       `json:"amount"`
	Cash   uint64       `json:"cash"`
}

// RedeemedEvent is emitted by redeem. Cash is the amount burned.
type RedeemedEvent struct {
	Pool   types.Pubkey `json:"pool"`
	Lender types.Pubkey `json:"lender"`
	Amount uint64       `json:"amount"`
	Cash   uint64       `json:"cash"`
}

type CashLentEvent struct {
	CashPool types.Pubkey `json:"cash_pool"`
	Lender   types.Pubkey `json:"lender"`
	Amount   uint64       `json:"amount"`
}

type CashRedeemedEvent struct {
	CashPool types.Pubkey `json:"cash_pool"`
	Lender   types.Pubkey `json:"lender"`
	Amount   uint64       `json:"amount"`
}

func emit(ic *runtime.InvokeContext, name string, event any) error {
	body, err := bin.MarshalBorsh(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	ic.Emit(discriminator.ForEvent(name).Prefix(body))
	return nil
}

// DecodeEvent parses a "Program data:" payload into a typed event. It
// returns the event name and a pointer to one of the *Event types.
func DecodeEvent(data []byte) (string, any, error) {
	name, body, err := eventMatcher.MatchData(data)
	if err != nil {
		return "", nil, err
	}

	var event any
	switch name {
	case EventAmmCreated:
		event = &AmmCreatedEvent{}
	case EventPoolCreated:
		event = &PoolCreatedEvent{}
	case EventLent:
		event = &LentEvent{}
	case EventRedeemed:
		event = &RedeemedEvent{}
	case EventCashLent:
		event = &CashLentEvent{}
	case EventCashRedeemed:
		event = &CashRedeemedEvent{}
	}
	if err := bin.UnmarshalBorsh(event, body); err != nil {
		return name, nil, fmt.Errorf("decode %s event: %w", name, err)
	}
	return name, event, nil
}

// IsEvent reports whether data starts with a known event discriminator.
func IsEvent(data []byte) bool {
	d, err := discriminator.FromBytes(data)
	if err != nil {
		return false
	}
	_, ok := eventMatcher.Match(d)
	return ok
}
