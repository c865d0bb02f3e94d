// Package node assembles a running deployment from a Config: the ledger,
// the runtime with the token and lending programs registered, and the
// journal pipeline fed by the runtime.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/common"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/decoder"
	"github.com/lugondev/go-cash/internal/filter"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/ledger"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/pipeline"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/internal/processor/journal"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/storage"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/internal/transaction"
	"github.com/lugondev/go-cash/pkg/types"

	// Journal backends register themselves with the storage factory.
	_ "github.com/lugondev/go-cash/internal/storage/memory"
	_ "github.com/lugondev/go-cash/internal/storage/mongo"
	_ "github.com/lugondev/go-cash/internal/storage/mysql"
	_ "github.com/lugondev/go-cash/internal/storage/postgres"
)

// Node owns every long-lived component of a deployment.
type Node struct {
	common.LoggerMixin

	cfg        *config.Config
	programID  types.Pubkey
	ledger     *ledger.Ledger
	runtime    *runtime.Runtime
	client     *client.Client
	metrics    *metrics.Collection
	prometheus *metrics.PrometheusMetrics
	feed       *datasource.Feed
	pipeline   *pipeline.Pipeline
	conn       *storage.ConnectionManager
	repo       storage.Repository
	batch      *journal.BatchJournal

	done chan error
}

// New builds a node. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, err
	}

	n := &Node{
		LoggerMixin: common.NewLoggerMixin(),
		cfg:         cfg,
		programID:   programID,
		metrics:     metrics.NewCollection(),
	}
	n.SetLogger(logger.With("component", "node"))

	if cfg.Metrics.Enabled {
		n.prometheus = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		n.metrics.Add(n.prometheus)
	}

	if n.ledger, err = openLedger(cfg.Ledger, logger); err != nil {
		return nil, err
	}

	if cfg.Database.Enabled {
		if n.conn, err = storage.NewConnectionManager(&cfg.Database); err != nil {
			n.ledger.Close()
			return nil, err
		}
		if n.repo, err = n.conn.Connect(ctx); err != nil {
			n.ledger.Close()
			return nil, err
		}
	}

	n.feed = datasource.NewFeed(cfg.Pipeline.ChannelBufferSize)
	n.runtime = runtime.New(n.ledger,
		runtime.WithLogger(logger),
		runtime.WithMetrics(n.metrics),
		runtime.WithPublisher(n.feed),
	)
	programs := []runtime.Program{
		token.NewProgram(logger),
		cash.New(programID,
			cash.WithLogger(logger),
			cash.WithMetrics(n.metrics),
			cash.WithRejectExistingLending(cfg.Program.RejectExistingLending),
		),
	}
	for _, p := range programs {
		if err := n.runtime.Register(p); err != nil {
			n.Close()
			return nil, err
		}
	}
	n.client = client.NewLocal(programID, n.runtime)
	n.pipeline = n.buildPipeline(logger)
	return n, nil
}

func openLedger(cfg config.LedgerConfig, logger *slog.Logger) (*ledger.Ledger, error) {
	switch cfg.Backend {
	case "leveldb":
		store, err := ledger.OpenLevelStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger at %s: %w", cfg.Path, err)
		}
		l, err := ledger.New(store, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		return l, nil
	default:
		return ledger.New(ledger.NewMemStore(), logger)
	}
}

// Journal writes are retried before the pipeline counts the update failed.
const (
	journalAttempts   = 3
	journalRetryDelay = 50 * time.Millisecond
)

// buildPipeline routes runtime output to the journal, when a repository is
// configured, and to the protocol counters.
func (n *Node) buildPipeline(logger *slog.Logger) *pipeline.Pipeline {
	programs := filter.NewProgramFilter(n.programID, token.ProgramID)

	txProcessors := processor.NewChainedProcessor[transaction.TransactionProcessorInput[any]](
		journal.EventMetricsProcessor[any](),
	)
	builder := pipeline.Builder().
		Datasource(datasource.NewNamedDatasourceID("runtime"), n.feed).
		Metrics(n.metrics).
		MetricsFlushInterval(time.Duration(n.cfg.Pipeline.MetricsFlushInterval) * time.Second).
		ChannelBufferSize(n.cfg.Pipeline.ChannelBufferSize).
		Logger(logger)

	if n.repo != nil {
		txJournal, accountJournal := n.journalProcessors(logger.With("component", "journal"))
		txProcessors.Add(txJournal)
		builder.AccountPipe(account.NewAccountPipe[any](
			decoder.NewAccountDecoder(n.programID),
			accountJournal,
			programs,
		).WithLogger(logger))
	}

	builder.InstructionPipe(instruction.NewInstructionPipe[*cash.DecodedInstruction](
		decoder.NewCashInstructionDecoder(n.programID),
		n.activityLog(),
		filter.NewSucceededFilter(),
	).WithLogger(logger))

	builder.TransactionPipe(transaction.NewTransactionPipe[any](
		decoder.NewInstructionDecoder(n.programID),
		decoder.NewCashEventDecoder(n.programID),
		txProcessors,
		programs,
	).WithLogger(logger))

	return builder.Build()
}

// journalProcessors writes through with retries, or buffers into a
// BatchJournal when a batch size is configured. Batched writes are not
// retried; whatever is buffered at Close is flushed then.
func (n *Node) journalProcessors(logger *slog.Logger) (
	processor.Processor[transaction.TransactionProcessorInput[any]],
	processor.Processor[account.AccountProcessorInput[any]],
) {
	if size := n.cfg.Pipeline.JournalBatchSize; size > 0 {
		n.batch = journal.NewBatchJournal(n.repo, logger, size)
		return journal.BatchTransactionProcessor[any](n.batch), journal.BatchAccountProcessor[any](n.batch)
	}
	j := journal.New(n.repo, logger)
	return processor.NewRetryProcessor(journal.TransactionProcessor[any](j), journalAttempts, journalRetryDelay),
		processor.NewRetryProcessor(journal.AccountProcessor[any](j), journalAttempts, journalRetryDelay)
}

type cashInstruction = instruction.InstructionProcessorInput[*cash.DecodedInstruction]

// activityLog reports every committed lend or redeem at info level.
// Provisioning instructions are left to the runtime's debug logs.
func (n *Node) activityLog() processor.Processor[cashInstruction] {
	log := processor.ProcessorFunc[cashInstruction](
		func(ctx context.Context, input cashInstruction, _ *metrics.Collection) error {
			n.GetLogger().InfoContext(ctx, "instruction committed",
				"name", input.DecodedInstruction.Name,
				"signature", input.Metadata.Signature.String(),
				"slot", input.Metadata.Slot,
			)
			return nil
		})
	return processor.When(isLending, processor.Processor[cashInstruction](log))
}

func isLending(input cashInstruction) bool {
	switch input.DecodedInstruction.Name {
	case cash.InstructionLend, cash.InstructionRedeem, cash.InstructionLendCash, cash.InstructionRedeemCash:
		return true
	}
	return false
}

// Start runs the pipeline in the background until Close or ctx ends.
func (n *Node) Start(ctx context.Context) {
	if n.done != nil {
		return
	}
	n.done = make(chan error, 1)
	go func() {
		n.done <- n.pipeline.Run(ctx)
	}()
	n.GetLogger().Info("node started",
		"program_id", n.programID.String(),
		"ledger", n.cfg.Ledger.Backend,
		"journal", n.repo != nil,
	)
}

// Close stops accepting updates, waits for the pipeline to journal what is
// queued, then closes storage and the ledger.
func (n *Node) Close() error {
	var errs []error
	if n.feed != nil {
		n.feed.Close()
	}
	if n.done != nil {
		if err := <-n.done; err != nil {
			errs = append(errs, err)
		}
		n.done = nil
	}
	if n.batch != nil {
		if err := n.batch.FlushAll(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.ledger != nil {
		if err := n.ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Node) Config() *config.Config { return n.cfg }

func (n *Node) ProgramID() types.Pubkey { return n.programID }

func (n *Node) Runtime() *runtime.Runtime { return n.runtime }

func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

func (n *Node) Client() *client.Client { return n.client }

func (n *Node) Metrics() *metrics.Collection { return n.metrics }

// Prometheus returns the Prometheus backend, nil when metrics are disabled.
func (n *Node) Prometheus() *metrics.PrometheusMetrics { return n.prometheus }

// Repository returns the journal, nil when the database is disabled.
func (n *Node) Repository() storage.Repository { return n.repo }

// Pending returns the number of updates published but not yet consumed.
func (n *Node) Pending() int { return n.feed.Pending() }
