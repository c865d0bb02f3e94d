// Package datasource defines the updates the runtime emits after every
// executed transaction and the Datasource interface the journal pipeline
// consumes them through.
package datasource

import (
	"context"

	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/pkg/types"
)

type UpdateType uint8

const (
	UpdateTypeAccount UpdateType = iota
	UpdateTypeTransaction
)

func (t UpdateType) String() string {
	switch t {
	case UpdateTypeAccount:
		return "account"
	case UpdateTypeTransaction:
		return "transaction"
	}
	return "unknown"
}

// DatasourceID names a datasource within a pipeline, so filters can pass
// or drop updates by origin.
type DatasourceID string

func NewNamedDatasourceID(name string) DatasourceID { return DatasourceID(name) }

func (d DatasourceID) String() string { return string(d) }

// Update carries exactly one of Account or Transaction, as Type says.
type Update struct {
	Type        UpdateType
	Account     *AccountUpdate
	Transaction *TransactionUpdate
}

func NewAccountUpdate(u *AccountUpdate) Update {
	return Update{Type: UpdateTypeAccount, Account: u}
}

func NewTransactionUpdate(u *TransactionUpdate) Update {
	return Update{Type: UpdateTypeTransaction, Transaction: u}
}

// AccountUpdate is the committed state of one account written by a
// transaction.
type AccountUpdate struct {
	Pubkey  types.Pubkey
	Account types.Account
	// Version is the ledger record version after the write.
	Version uint64
	Slot    uint64

	TransactionSignature *types.Signature
}

// TransactionUpdate is the outcome of one submitted transaction, committed
// or not.
type TransactionUpdate struct {
	Signature types.Signature
	// Signers are the verified signer addresses, fee payer first.
	Signers      []types.Pubkey
	Instructions []types.Instruction
	Logs         []string

	// Err is empty when the transaction committed. ErrCode is set when the
	// failure carried a coded error.
	Err     string
	ErrCode string

	// Slot is the commit slot, or the ledger slot at execution time when
	// the transaction failed.
	Slot      uint64
	BlockTime int64
}

func (u *TransactionUpdate) Succeeded() bool {
	return u.Err == ""
}

// UpdateWithSource tags an Update with the datasource it came from.
type UpdateWithSource struct {
	Update       Update
	DatasourceID DatasourceID
}

// Datasource produces updates for a pipeline.
type Datasource interface {
	// Consume sends updates until ctx is cancelled or the source is
	// exhausted. It does not close updates.
	Consume(ctx context.Context, id DatasourceID, updates chan<- UpdateWithSource, m *metrics.Collection) error
}
