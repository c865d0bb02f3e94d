package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/internal/storage"
	"github.com/lugondev/go-cash/internal/transaction"
)

// BatchJournal buffers models and writes them with SaveBatch once a buffer
// reaches its size. Call FlushAll before shutdown.
type BatchJournal struct {
	repo   storage.Repository
	logger *slog.Logger

	mu           sync.Mutex
	accounts     []*storage.AccountModel
	transactions []*storage.TransactionModel
	instructions []*storage.InstructionModel
	events       []*storage.EventModel

	accountBatchSize int
	txBatchSize      int
	eventBatchSize   int
}

func NewBatchJournal(repo storage.Repository, logger *slog.Logger, batchSize int) *BatchJournal {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	txBatchSize := max(batchSize/2, 1)
	return &BatchJournal{
		repo:             repo,
		logger:           logger,
		accounts:         make([]*storage.AccountModel, 0, batchSize),
		transactions:     make([]*storage.TransactionModel, 0, txBatchSize),
		events:           make([]*storage.EventModel, 0, batchSize*2),
		accountBatchSize: batchSize,
		txBatchSize:      txBatchSize,
		eventBatchSize:   batchSize * 2,
	}
}

// AddAccount buffers an account model.
func (b *BatchJournal) AddAccount(ctx context.Context, model *storage.AccountModel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.accounts = append(b.accounts, model)
	if len(b.accounts) >= b.accountBatchSize {
		return b.flushAccounts(ctx)
	}
	return nil
}

// AddEntry buffers a transaction with its instructions and events.
// Instructions are flushed together with their transaction.
func (b *BatchJournal) AddEntry(ctx context.Context, entry *Entry, m *metrics.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transactions = append(b.transactions, entry.Transaction)
	b.instructions = append(b.instructions, entry.Instructions...)
	b.events = append(b.events, entry.Events...)

	if len(b.transactions) >= b.txBatchSize {
		if err := b.flushTransactions(ctx); err != nil {
			return err
		}
	}
	if len(b.events) >= b.eventBatchSize {
		n := len(b.events)
		if err := b.flushEvents(ctx); err != nil {
			return err
		}
		_ = metrics.OrNoop(m).IncrementCounter(ctx, metrics.MetricEventsJournaled, uint64(n))
	}
	return nil
}

func (b *BatchJournal) flushAccounts(ctx context.Context) error {
	if len(b.accounts) == 0 {
		return nil
	}
	// Account saves are version-guarded, so ordering within a batch does
	// not matter.
	if err := b.repo.Accounts().SaveBatch(ctx, b.accounts); err != nil {
		b.logger.Error("failed to save account batch", "count", len(b.accounts), "error", err)
		return fmt.Errorf("failed to save account batch: %w", err)
	}
	b.logger.Debug("account batch saved", "count", len(b.accounts))
	b.accounts = b.accounts[:0]
	return nil
}

func (b *BatchJournal) flushTransactions(ctx context.Context) error {
	if len(b.transactions) == 0 {
		return nil
	}
	if err := b.repo.Transactions().SaveBatch(ctx, b.transactions); err != nil {
		b.logger.Error("failed to save transaction batch", "count", len(b.transactions), "error", err)
		return fmt.Errorf("failed to save transaction batch: %w", err)
	}
	if len(b.instructions) > 0 {
		if err := b.repo.Instructions().SaveBatch(ctx, b.instructions); err != nil {
			b.logger.Error("failed to save instruction batch", "count", len(b.instructions), "error", err)
			return fmt.Errorf("failed to save instruction batch: %w", err)
		}
	}
	b.logger.Debug("transaction batch saved",
		"transactions", len(b.transactions),
		"instructions", len(b.instructions),
	)
	b.transactions = b.transactions[:0]
	b.instructions = b.instructions[:0]
	return nil
}

func (b *BatchJournal) flushEvents(ctx context.Context) error {
	if len(b.events) == 0 {
		return nil
	}
	if err := b.repo.Events().SaveBatch(ctx, b.events); err != nil {
		b.logger.Error("failed to save event batch", "count", len(b.events), "error", err)
		return fmt.Errorf("failed to save event batch: %w", err)
	}
	b.logger.Debug("event batch saved", "count", len(b.events))
	b.events = b.events[:0]
	return nil
}

// FlushAccounts writes buffered accounts.
func (b *BatchJournal) FlushAccounts(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushAccounts(ctx)
}

// FlushTransactions writes buffered transactions and instructions.
func (b *BatchJournal) FlushTransactions(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushTransactions(ctx)
}

// FlushEvents writes buffered events.
func (b *BatchJournal) FlushEvents(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushEvents(ctx)
}

// FlushAll writes every buffer.
func (b *BatchJournal) FlushAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.flushAccounts(ctx); err != nil {
		return err
	}
	if err := b.flushTransactions(ctx); err != nil {
		return err
	}
	return b.flushEvents(ctx)
}

// Pending returns the number of buffered accounts, transactions and events.
func (b *BatchJournal) Pending() (accounts, transactions, events int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.accounts), len(b.transactions), len(b.events)
}

// BatchTransactionProcessor buffers every transaction the pipe hands it.
func BatchTransactionProcessor[T any](b *BatchJournal) processor.Processor[transaction.TransactionProcessorInput[T]] {
	return processor.ProcessorFunc[transaction.TransactionProcessorInput[T]](
		func(ctx context.Context, input transaction.TransactionProcessorInput[T], m *metrics.Collection) error {
			entry, err := NewEntry(updateOf(input), InstructionNames(input), input.Events)
			if err != nil {
				return err
			}
			return b.AddEntry(ctx, entry, m)
		})
}

// BatchAccountProcessor buffers every account write the pipe hands it.
func BatchAccountProcessor[T any](b *BatchJournal) processor.Processor[account.AccountProcessorInput[T]] {
	return processor.ProcessorFunc[account.AccountProcessorInput[T]](
		func(ctx context.Context, input account.AccountProcessorInput[T], m *metrics.Collection) error {
			update, kind := accountUpdateOf(input)
			return b.AddAccount(ctx, storage.AccountUpdateToModel(update, kind))
		})
}
