// Package storage journals what the runtime executed: transactions, their
// top-level instructions, the protocol events they emitted and the latest
// state of every account they wrote.
//
// Backends live in subpackages and register themselves with Register.
// Single-record finders return (nil, nil) when nothing matches. List finders
// take a limit, where zero or less means no limit, and an offset.
package storage

import "context"

// Writer upserts records keyed by their ID. Saving the same record twice
// leaves one copy.
type Writer[T any] interface {
	Save(ctx context.Context, record *T) error
	SaveBatch(ctx context.Context, records []*T) error
}

// AccountRepository keeps the latest state of each account. A write that
// carries an older version than the stored one is ignored.
type AccountRepository interface {
	Writer[AccountModel]
	FindByPubkey(ctx context.Context, pubkey string) (*AccountModel, error)
	FindByOwner(ctx context.Context, owner string, limit, offset int) ([]*AccountModel, error)
	// FindByKind lists accounts by decoded layout, newest slot first.
	FindByKind(ctx context.Context, kind string, limit, offset int) ([]*AccountModel, error)
}

// TransactionRepository records every executed transaction, failed ones
// included.
type TransactionRepository interface {
	Writer[TransactionModel]
	FindBySignature(ctx context.Context, signature string) (*TransactionModel, error)
	FindBySlot(ctx context.Context, slot uint64, limit, offset int) ([]*TransactionModel, error)
	FindBySigner(ctx context.Context, signer string, limit, offset int) ([]*TransactionModel, error)
	FindRecent(ctx context.Context, limit int) ([]*TransactionModel, error)
}

type InstructionRepository interface {
	Writer[InstructionModel]
	// FindBySignature returns a transaction's instructions in submission order.
	FindBySignature(ctx context.Context, signature string) ([]*InstructionModel, error)
	FindByProgramID(ctx context.Context, programID string, limit, offset int) ([]*InstructionModel, error)
	FindByName(ctx context.Context, name string, limit, offset int) ([]*InstructionModel, error)
}

type EventRepository interface {
	Writer[EventModel]
	// FindBySignature returns a transaction's events in emission order.
	FindBySignature(ctx context.Context, signature string) ([]*EventModel, error)
	FindByProgramID(ctx context.Context, programID string, limit, offset int) ([]*EventModel, error)
	FindByEventName(ctx context.Context, name string, limit, offset int) ([]*EventModel, error)
	FindBySlot(ctx context.Context, slot uint64, limit, offset int) ([]*EventModel, error)
}

// Repository is one open journal backend.
type Repository interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Instructions() InstructionRepository
	Events() EventRepository
	Ping(ctx context.Context) error
	Close() error
}
