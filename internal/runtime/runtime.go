// Package runtime executes signed transactions against the ledger.
//
// Every transaction runs inside one ledger.Tx: instructions are dispatched to
// registered programs by program id, programs may call each other through
// InvokeContext.Invoke, and the whole transaction either commits atomically
// or leaves no trace. Program output is recorded as log lines in the format
// understood by pkg/log.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lugondev/go-cash/internal/datasource"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/ledger"
	"github.com/lugondev/go-cash/internal/metrics"
	plog "github.com/lugondev/go-cash/pkg/log"
	"github.com/lugondev/go-cash/pkg/types"
)

// DefaultMaxDepth bounds nested cross-program invocations.
const DefaultMaxDepth = 4

// Program processes instructions addressed to its id.
type Program interface {
	ID() types.Pubkey
	Name() string
	Process(ic *InvokeContext) error
}

// Publisher receives the outcome of every executed transaction.
type Publisher interface {
	PublishTransaction(update *datasource.TransactionUpdate)
	PublishAccount(update *datasource.AccountUpdate)
}

// Receipt is the result of Submit or Simulate.
type Receipt struct {
	Signature types.Signature
	Slot      uint64
	Logs      []string
	Committed bool
	Err       error
}

// Runtime dispatches transactions to programs.
type Runtime struct {
	ledger    *ledger.Ledger
	publisher Publisher
	metrics   *metrics.Collection
	logger    *slog.Logger
	maxDepth  int
	now       func() time.Time

	mu       sync.RWMutex
	programs map[types.Pubkey]Program

	publishMu sync.Mutex
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics collection.
func WithMetrics(m *metrics.Collection) Option {
	return func(r *Runtime) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithPublisher sets the publisher notified after every transaction.
func WithPublisher(p Publisher) Option {
	return func(r *Runtime) { r.publisher = p }
}

// WithMaxDepth sets the cross-program invocation depth limit.
func WithMaxDepth(depth int) Option {
	return func(r *Runtime) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithClock overrides the clock used for block times.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// New creates a Runtime over l.
func New(l *ledger.Ledger, opts ...Option) *Runtime {
	r := &Runtime{
		ledger:   l,
		metrics:  metrics.NewCollection(),
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
		now:      time.Now,
		programs: make(map[types.Pubkey]Program),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "runtime")
	return r
}

// Register adds a program. Registering two programs under one id fails.
func (r *Runtime) Register(p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.programs[p.ID()]; ok {
		return fmt.Errorf("program id %s already registered by %s", p.ID(), existing.Name())
	}
	r.programs[p.ID()] = p
	r.logger.Debug("program registered", "program", p.Name(), "id", p.ID().String())
	return nil
}

// Program returns the program registered under id.
func (r *Runtime) Program(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// Ledger returns the ledger the runtime executes against.
func (r *Runtime) Ledger() *ledger.Ledger {
	return r.ledger
}

// Submit verifies, executes and commits tx. On any failure the ledger is
// unchanged and the returned receipt carries the logs up to the failure.
func (r *Runtime) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	return r.run(ctx, tx, true)
}

// Simulate executes tx and discards its writes.
func (r *Runtime) Simulate(ctx context.Context, tx *Transaction) (*Receipt, error) {
	return r.run(ctx, tx, false)
}

func (r *Runtime) run(ctx context.Context, tx *Transaction, commit bool) (*Receipt, error) {
	start := r.now()
	receipt := &Receipt{Signature: tx.Signature(), Slot: r.ledger.Slot()}

	if commit {
		_ = r.metrics.IncrementCounter(ctx, metrics.MetricTransactionsSubmitted, 1)
	}

	ltx, exec, err := r.execute(ctx, tx)
	if exec != nil {
		receipt.Logs = exec.logs
	}
	if err == nil && !commit {
		ltx.Discard()
		return receipt, nil
	}
	var result *ledger.CommitResult
	if err == nil {
		result, err = r.commit(tx, ltx, receipt, start)
	}
	if err != nil {
		receipt.Err = err
		if commit {
			r.recordFailure(ctx, tx, receipt, err, start)
		}
		return receipt, err
	}

	elapsed := time.Since(start)
	_ = r.metrics.IncrementCounter(ctx, metrics.MetricTransactionsCommitted, 1)
	_ = r.metrics.RecordHistogram(ctx, metrics.MetricTransactionLatencyMs, float64(elapsed.Microseconds())/1000)
	_ = r.metrics.UpdateGauge(ctx, metrics.MetricLedgerSlot, float64(result.Slot))

	r.logger.Debug("transaction committed",
		"signature", receipt.Signature.String(),
		"slot", result.Slot,
		"accounts_written", len(result.Changes),
	)
	return receipt, nil
}

// commit applies ltx and publishes the outcome under publishMu, so committed
// transactions reach the publisher in slot order.
func (r *Runtime) commit(tx *Transaction, ltx *ledger.Tx, receipt *Receipt, start time.Time) (*ledger.CommitResult, error) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	result, err := ltx.Commit()
	if err != nil {
		return nil, err
	}
	receipt.Slot = result.Slot
	receipt.Committed = true
	r.publish(tx, receipt, result.Changes, start)
	return result, nil
}

// execute runs every instruction of tx and returns the open ledger
// transaction holding its writes. On error the writes are already discarded.
func (r *Runtime) execute(ctx context.Context, tx *Transaction) (*ledger.Tx, *execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, cerrors.ErrContextCanceled.WithCause(err)
	}
	if err := tx.Verify(); err != nil {
		return nil, nil, err
	}

	signers := make(map[types.Pubkey]struct{}, len(tx.Message.Signers))
	for _, s := range tx.Message.Signers {
		signers[s] = struct{}{}
	}

	ltx := r.ledger.Begin()
	ltx.SetSignature(tx.Signature())
	exec := &execution{}

	for i := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[i]
		if err := ctx.Err(); err != nil {
			ltx.Discard()
			return nil, exec, cerrors.ErrContextCanceled.WithCause(err)
		}

		program, ok := r.Program(ix.ProgramID)
		if !ok {
			ltx.Discard()
			return nil, exec, cerrors.ErrUnknownProgram.WithDetails(map[string]any{"program": ix.ProgramID.String()})
		}

		frame := &InvokeContext{
			ctx:      ctx,
			runtime:  r,
			tx:       ltx,
			exec:     exec,
			program:  program,
			ix:       ix,
			depth:    1,
			signers:  make(map[types.Pubkey]struct{}),
			writable: make(map[types.Pubkey]struct{}),
		}
		for _, meta := range ix.Accounts {
			if meta.IsSigner {
				if _, ok := signers[meta.Pubkey]; !ok {
					ltx.Discard()
					return nil, exec, cerrors.ErrMissingSignature.WithDetails(map[string]any{
						"instruction": i,
						"account":     meta.Pubkey.String(),
					})
				}
				frame.signers[meta.Pubkey] = struct{}{}
			}
			if meta.IsWritable {
				frame.writable[meta.Pubkey] = struct{}{}
			}
		}

		if err := r.process(frame); err != nil {
			ltx.Discard()
			return nil, exec, fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	return ltx, exec, nil
}

// process runs one frame, bracketing it with invoke and result log lines.
func (r *Runtime) process(frame *InvokeContext) error {
	id := frame.program.ID().String()
	frame.exec.append(plog.FormatInvoke(id, frame.depth))
	if err := frame.program.Process(frame); err != nil {
		frame.exec.append(plog.FormatFailed(id, err))
		return err
	}
	frame.exec.append(plog.FormatSuccess(id))
	return nil
}

func (r *Runtime) recordFailure(ctx context.Context, tx *Transaction, receipt *Receipt, err error, start time.Time) {
	_ = r.metrics.IncrementCounter(ctx, metrics.MetricTransactionsFailed, 1)
	if errors.Is(err, cerrors.ErrWriteConflict) {
		_ = r.metrics.IncrementCounter(ctx, metrics.MetricTransactionsConflicts, 1)
	}
	r.logger.Debug("transaction failed",
		"signature", receipt.Signature.String(),
		"kind", string(cerrors.KindOf(err)),
		"error", err,
	)
	r.publish(tx, receipt, nil, start)
}

func (r *Runtime) publish(tx *Transaction, receipt *Receipt, changes []ledger.Change, start time.Time) {
	if r.publisher == nil {
		return
	}
	sig := receipt.Signature
	update := &datasource.TransactionUpdate{
		Signature:    sig,
		Signers:      tx.Message.Signers,
		Instructions: tx.Message.Instructions,
		Logs:         receipt.Logs,
		Slot:         receipt.Slot,
		BlockTime:    start.Unix(),
	}
	if receipt.Err != nil {
		update.Err = receipt.Err.Error()
		update.ErrCode = cerrors.CodeOf(receipt.Err)
	}
	r.publisher.PublishTransaction(update)

	for _, change := range changes {
		r.publisher.PublishAccount(&datasource.AccountUpdate{
			Pubkey:               change.Address,
			Account:              change.Record.Account(),
			Version:              change.Record.Version,
			Slot:                 change.Record.Slot,
			TransactionSignature: &sig,
		})
	}
}

// execution accumulates the log lines of one transaction across all frames.
type execution struct {
	logs []string
}

func (e *execution) append(line string) {
	e.logs = append(e.logs, line)
}
