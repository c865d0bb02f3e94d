// Package journal persists what the pipeline sees: committed account writes,
// executed transactions with their instructions, and the events they
// emitted.
package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/internal/storage"
	"github.com/lugondev/go-cash/internal/transaction"
	"github.com/lugondev/go-cash/pkg/types"
)

// Journal writes decoded updates to a storage.Repository.
type Journal struct {
	repo   storage.Repository
	logger *slog.Logger
}

func New(repo storage.Repository, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		repo:   repo,
		logger: logger,
	}
}

// SaveAccount stores an account write. kind is the decoded account type.
func (j *Journal) SaveAccount(ctx context.Context, update *datasource.AccountUpdate, kind string) error {
	model := storage.AccountUpdateToModel(update, kind)

	if err := j.repo.Accounts().Save(ctx, model); err != nil {
		j.logger.Error("failed to save account",
			"pubkey", model.Pubkey,
			"slot", update.Slot,
			"error", err,
		)
		return fmt.Errorf("failed to save account: %w", err)
	}

	j.logger.Debug("account journaled",
		"pubkey", model.Pubkey,
		"kind", kind,
		"version", update.Version,
	)
	return nil
}

// Entry is one transaction ready to be journaled.
type Entry struct {
	Transaction  *storage.TransactionModel
	Instructions []*storage.InstructionModel
	Events       []*storage.EventModel
}

// NewEntry converts update into storage models. names maps top-level
// instruction indexes to decoded names.
func NewEntry(update *datasource.TransactionUpdate, names map[int]string, events []transaction.DecodedEvent) (*Entry, error) {
	entry := &Entry{
		Transaction:  storage.TransactionUpdateToModel(update),
		Instructions: make([]*storage.InstructionModel, 0, len(update.Instructions)),
		Events:       make([]*storage.EventModel, 0, len(events)),
	}
	for i := range update.Instructions {
		entry.Instructions = append(entry.Instructions,
			storage.InstructionToModel(update.Signature, update.Slot, i, &update.Instructions[i], names[i]))
	}
	for _, ev := range events {
		model, err := storage.EventToModel(update.Signature, update.Slot, update.BlockTime, ev.Index, ev.ProgramID, ev.Name, ev.Data)
		if err != nil {
			return nil, err
		}
		entry.Events = append(entry.Events, model)
	}
	return entry, nil
}

// SaveEntry stores the transaction, then its instructions and events.
func (j *Journal) SaveEntry(ctx context.Context, entry *Entry, m *metrics.Collection) error {
	sig := entry.Transaction.Signature

	if err := j.repo.Transactions().Save(ctx, entry.Transaction); err != nil {
		j.logger.Error("failed to save transaction",
			"signature", sig,
			"slot", entry.Transaction.Slot,
			"error", err,
		)
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	if len(entry.Instructions) > 0 {
		if err := j.repo.Instructions().SaveBatch(ctx, entry.Instructions); err != nil {
			j.logger.Error("failed to save instructions", "signature", sig, "error", err)
			return fmt.Errorf("failed to save instructions: %w", err)
		}
	}
	if len(entry.Events) > 0 {
		if err := j.repo.Events().SaveBatch(ctx, entry.Events); err != nil {
			j.logger.Error("failed to save events", "signature", sig, "error", err)
			return fmt.Errorf("failed to save events: %w", err)
		}
		_ = metrics.OrNoop(m).IncrementCounter(ctx, metrics.MetricEventsJournaled, uint64(len(entry.Events)))
	}

	j.logger.Debug("transaction journaled",
		"signature", sig,
		"slot", entry.Transaction.Slot,
		"success", entry.Transaction.Success,
		"events", len(entry.Events),
	)
	return nil
}

// TransactionProcessor journals every transaction the pipe hands it.
func TransactionProcessor[T any](j *Journal) processor.Processor[transaction.TransactionProcessorInput[T]] {
	return processor.ProcessorFunc[transaction.TransactionProcessorInput[T]](
		func(ctx context.Context, input transaction.TransactionProcessorInput[T], m *metrics.Collection) error {
			entry, err := NewEntry(updateOf(input), InstructionNames(input), input.Events)
			if err != nil {
				return err
			}
			return j.SaveEntry(ctx, entry, m)
		})
}

// AccountProcessor journals every account write the pipe hands it.
func AccountProcessor[T any](j *Journal) processor.Processor[account.AccountProcessorInput[T]] {
	return processor.ProcessorFunc[account.AccountProcessorInput[T]](
		func(ctx context.Context, input account.AccountProcessorInput[T], m *metrics.Collection) error {
			update, kind := accountUpdateOf(input)
			return j.SaveAccount(ctx, update, kind)
		})
}

// InstructionNames maps the index of every decoded top-level instruction to
// its name.
func InstructionNames[T any](input transaction.TransactionProcessorInput[T]) map[int]string {
	names := make(map[int]string, len(input.Instructions))
	for _, ix := range input.Instructions {
		if ix.Metadata == nil || ix.DecodedInstruction == nil {
			continue
		}
		names[ix.Metadata.Index] = ix.DecodedInstruction.Name
	}
	return names
}

func updateOf[T any](input transaction.TransactionProcessorInput[T]) *datasource.TransactionUpdate {
	if input.Update != nil {
		return input.Update
	}
	md := input.Metadata
	return &datasource.TransactionUpdate{
		Signature: md.Signature,
		Signers:   md.Signers,
		Logs:      md.Logs,
		Err:       md.Err,
		ErrCode:   md.ErrCode,
		Slot:      md.Slot,
		BlockTime: md.BlockTime,
	}
}

func accountUpdateOf[T any](input account.AccountProcessorInput[T]) (*datasource.AccountUpdate, string) {
	var kind string
	raw := input.RawAccount
	if input.DecodedAccount != nil {
		kind = input.DecodedAccount.Kind
	}
	if raw == nil {
		raw = &types.Account{}
		if input.DecodedAccount != nil {
			raw.Owner = input.DecodedAccount.Owner
		}
	}
	md := input.Metadata
	return &datasource.AccountUpdate{
		Pubkey:               md.Pubkey,
		Account:              *raw,
		Version:              md.Version,
		Slot:                 md.Slot,
		TransactionSignature: md.TransactionSignature,
	}, kind
}
