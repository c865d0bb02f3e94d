// Package account decodes and processes committed account writes.
//
// Every transaction that commits publishes one AccountUpdate per written
// account. An AccountPipe decodes the new state and hands recognized
// accounts to its processor; accounts no decoder knows are skipped.
package account

import (
	"context"
	"log/slog"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/filter"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/pkg/types"
)

// AccountMetadata identifies one committed write.
type AccountMetadata struct {
	Slot    uint64
	Pubkey  types.Pubkey
	Version uint64

	// TransactionSignature is nil for writes made outside a transaction.
	TransactionSignature *types.Signature
}

func NewAccountMetadata(update *datasource.AccountUpdate) *AccountMetadata {
	return &AccountMetadata{
		Slot:                 update.Slot,
		Pubkey:               update.Pubkey,
		Version:              update.Version,
		TransactionSignature: update.TransactionSignature,
	}
}

// DecodedAccount is account state decoded into T.
type DecodedAccount[T any] struct {
	Owner types.Pubkey
	// Kind names the layout, e.g. "Pool" or "TokenAccount".
	Kind string
	Data T
}

// AccountDecoder decodes raw accounts into T, returning nil for accounts it
// does not recognize.
type AccountDecoder[T any] interface {
	DecodeAccount(account *types.Account) *DecodedAccount[T]
}

// ProgramAccountDecoder decodes the accounts owned by one program. Data
// that fails to decode is treated as unrecognized.
type ProgramAccountDecoder[T any] struct {
	programID types.Pubkey
	decode    func(data []byte) (kind string, state T, err error)
}

func NewProgramAccountDecoder[T any](programID types.Pubkey, decode func(data []byte) (string, T, error)) *ProgramAccountDecoder[T] {
	return &ProgramAccountDecoder[T]{programID: programID, decode: decode}
}

func (d *ProgramAccountDecoder[T]) DecodeAccount(account *types.Account) *DecodedAccount[T] {
	if account.Owner != d.programID {
		return nil
	}
	kind, state, err := d.decode(account.Data)
	if err != nil {
		return nil
	}
	return &DecodedAccount[T]{Owner: account.Owner, Kind: kind, Data: state}
}

// CompositeAccountDecoder returns the first non-nil result of its decoders.
type CompositeAccountDecoder[T any] struct {
	decoders []AccountDecoder[T]
}

func NewCompositeAccountDecoder[T any](decoders ...AccountDecoder[T]) *CompositeAccountDecoder[T] {
	return &CompositeAccountDecoder[T]{decoders: decoders}
}

func (c *CompositeAccountDecoder[T]) DecodeAccount(account *types.Account) *DecodedAccount[T] {
	for _, d := range c.decoders {
		if decoded := d.DecodeAccount(account); decoded != nil {
			return decoded
		}
	}
	return nil
}

// AccountProcessorInput is what an account processor receives.
type AccountProcessorInput[T any] struct {
	Metadata       *AccountMetadata
	DecodedAccount *DecodedAccount[T]
	RawAccount     *types.Account
}

// AccountPipe decodes account writes and processes the recognized ones.
type AccountPipe[T any] struct {
	decoder   AccountDecoder[T]
	processor processor.Processor[AccountProcessorInput[T]]
	filters   []filter.Filter
	logger    *slog.Logger
}

func NewAccountPipe[T any](
	decoder AccountDecoder[T],
	proc processor.Processor[AccountProcessorInput[T]],
	filters ...filter.Filter,
) *AccountPipe[T] {
	return &AccountPipe[T]{
		decoder:   decoder,
		processor: proc,
		filters:   filters,
		logger:    slog.Default(),
	}
}

func (p *AccountPipe[T]) WithLogger(logger *slog.Logger) *AccountPipe[T] {
	p.logger = logger
	return p
}

func (p *AccountPipe[T]) GetFilters() []filter.Filter {
	return p.filters
}

func (p *AccountPipe[T]) RunAccount(ctx context.Context, update *datasource.AccountUpdate, m *metrics.Collection) error {
	decoded := p.decoder.DecodeAccount(&update.Account)
	if decoded == nil {
		p.logger.DebugContext(ctx, "account skipped", "pubkey", update.Pubkey.String(), "owner", update.Account.Owner.String())
		return nil
	}
	return p.processor.Process(ctx, AccountProcessorInput[T]{
		Metadata:       NewAccountMetadata(update),
		DecodedAccount: decoded,
		RawAccount:     &update.Account,
	}, m)
}

// AccountPipeRunner is an AccountPipe with its type parameter erased, so
// the pipeline can hold pipes of different T.
type AccountPipeRunner interface {
	RunAccount(ctx context.Context, update *datasource.AccountUpdate, m *metrics.Collection) error
	GetFilters() []filter.Filter
}

var _ AccountPipeRunner = (*AccountPipe[any])(nil)
