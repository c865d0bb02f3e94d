// Package pipeline moves executed transactions and committed account writes
// from datasources to the journal's pipes.
//
// A Pipeline reads every configured datasource into one buffered channel and
// routes each update, in arrival order, to the account, instruction or
// transaction pipes whose filters accept it. The runtime publishes into a
// datasource.Feed, so within one feed the journal sees transactions in
// commit order, each followed by its account writes.
//
// Pipe errors are logged and counted. They never stop the pipeline.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/datasource"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/filter"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/transaction"
)

const (
	DefaultChannelBufferSize    = 1000
	DefaultMetricsFlushInterval = 5 * time.Second
)

type source struct {
	id datasource.DatasourceID
	ds datasource.Datasource
}

// Pipeline routes updates from datasources to pipes. Build one with Builder.
type Pipeline struct {
	sources      []source
	accounts     []account.AccountPipeRunner
	instructions []instruction.InstructionPipeRunner
	transactions []transaction.TransactionPipeRunner

	metrics       *metrics.Collection
	flushInterval time.Duration
	bufferSize    int
	logger        *slog.Logger
}

// Run consumes every datasource until all of them are exhausted or ctx is
// cancelled. On cancellation, updates already queued are still delivered.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.metrics.Initialize(ctx); err != nil {
		return cerrors.Wrap(err, "initialize metrics")
	}
	p.logger.Info("pipeline started",
		"datasources", len(p.sources),
		"account_pipes", len(p.accounts),
		"instruction_pipes", len(p.instructions),
		"transaction_pipes", len(p.transactions),
	)

	updates := make(chan datasource.UpdateWithSource, p.bufferSize)
	var wg sync.WaitGroup
	for _, s := range p.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ds.Consume(ctx, s.id, updates, p.metrics); err != nil {
				p.logger.Error("datasource stopped", "datasource", s.id.String(), "error", err)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(updates)
	}()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drain(updates)
			return p.stop("context cancelled")
		case <-ticker.C:
			if err := p.metrics.Flush(ctx); err != nil {
				p.logger.Warn("metrics flush failed", "error", err)
			}
		case update, ok := <-updates:
			if !ok {
				return p.stop("datasources exhausted")
			}
			p.handle(ctx, update, len(updates))
		}
	}
}

// drain handles what is already buffered without waiting for more. The
// caller's context is done by now, so pipes run on a fresh one.
func (p *Pipeline) drain(updates <-chan datasource.UpdateWithSource) {
	ctx := context.WithoutCancel(context.Background())
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			p.handle(ctx, update, len(updates))
		default:
			return
		}
	}
}

func (p *Pipeline) stop(reason string) error {
	ctx := context.Background()
	if err := p.metrics.Flush(ctx); err != nil {
		p.logger.Warn("metrics flush failed", "error", err)
	}
	if err := p.metrics.Shutdown(ctx); err != nil {
		p.logger.Warn("metrics shutdown failed", "error", err)
	}
	p.logger.Info("pipeline stopped", "reason", reason)
	return nil
}

func (p *Pipeline) handle(ctx context.Context, u datasource.UpdateWithSource, queued int) {
	m := p.metrics
	_ = m.IncrementCounter(ctx, metrics.MetricUpdatesReceived, 1)

	start := time.Now()
	var err error
	switch u.Update.Type {
	case datasource.UpdateTypeAccount:
		err = p.routeAccount(ctx, u.DatasourceID, u.Update.Account)
	case datasource.UpdateTypeTransaction:
		err = p.routeTransaction(ctx, u.DatasourceID, u.Update.Transaction)
	default:
		p.logger.Warn("dropping update of unknown type", "type", u.Update.Type.String())
	}
	_ = m.RecordHistogram(ctx, metrics.MetricUpdatesProcessTimeMilliseconds, float64(time.Since(start).Microseconds())/1000)

	outcome := metrics.MetricUpdatesSuccessful
	if err != nil {
		outcome = metrics.MetricUpdatesFailed
		p.logger.Error("update failed", "type", u.Update.Type.String(), "error", err)
	}
	_ = m.IncrementCounter(ctx, outcome, 1)
	_ = m.IncrementCounter(ctx, metrics.MetricUpdatesProcessed, 1)
	_ = m.UpdateGauge(ctx, metrics.MetricUpdatesQueued, float64(queued))
}

func (p *Pipeline) routeAccount(ctx context.Context, id datasource.DatasourceID, update *datasource.AccountUpdate) error {
	if update == nil {
		return nil
	}
	var errs []error
	for _, pipe := range p.accounts {
		if filter.CheckAccountFilters(id, pipe.GetFilters(), update) {
			errs = append(errs, pipe.RunAccount(ctx, update, p.metrics))
		}
	}
	_ = p.metrics.IncrementCounter(ctx, metrics.MetricAccountUpdatesProcessed, 1)
	return cerrors.Join(errs...)
}

// routeTransaction hands each instruction to the instruction pipes first,
// then the whole transaction to the transaction pipes.
func (p *Pipeline) routeTransaction(ctx context.Context, id datasource.DatasourceID, update *datasource.TransactionUpdate) error {
	if update == nil {
		return nil
	}
	var errs []error

	var meta *transaction.TransactionMetadata
	for _, pipe := range p.instructions {
		if !filter.CheckTransactionFilters(id, pipe.GetFilters(), update) {
			continue
		}
		if meta == nil {
			meta = transaction.NewTransactionMetadataFromUpdate(update)
		}
		for i := range update.Instructions {
			errs = append(errs, pipe.RunInstruction(ctx, meta.InstructionMetadata(i), &update.Instructions[i], p.metrics))
		}
	}
	for _, pipe := range p.transactions {
		if filter.CheckTransactionFilters(id, pipe.GetFilters(), update) {
			errs = append(errs, pipe.RunTransaction(ctx, update, p.metrics))
		}
	}

	_ = p.metrics.IncrementCounter(ctx, metrics.MetricTransactionUpdatesProcessed, 1)
	return cerrors.Join(errs...)
}
