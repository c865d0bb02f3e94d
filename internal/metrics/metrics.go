// Package metrics collects counters, gauges and histograms from the runtime,
// the lending program and the journal pipeline.
//
// Components record through a Collection, which fans each call out to every
// registered backend: a Prometheus registry for the HTTP service, a slog
// backend for CLI runs, or nothing at all in tests.
package metrics

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/lugondev/go-cash/pkg/utils"
)

// Metrics is a metrics backend.
type Metrics interface {
	Initialize(ctx context.Context) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// UpdateGauge replaces the current value of a gauge.
	UpdateGauge(ctx context.Context, name string, value float64) error
	// IncrementCounter adds value to a monotonic counter.
	IncrementCounter(ctx context.Context, name string, value uint64) error
	// RecordHistogram adds one observation to a distribution.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection is itself a Metrics that forwards to its backends in order,
// stopping at the first backend error.
type Collection struct {
	mu       sync.RWMutex
	backends []Metrics
}

func NewCollection(backends ...Metrics) *Collection {
	return &Collection{backends: backends}
}

// OrNoop returns c, or an empty Collection when c is nil.
func OrNoop(c *Collection) *Collection {
	if c == nil {
		return NewCollection()
	}
	return c
}

// Add registers another backend.
func (c *Collection) Add(m Metrics) {
	c.mu.Lock()
	c.backends = append(c.backends, m)
	c.mu.Unlock()
}

// Len reports how many backends are registered.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.backends)
}

func (c *Collection) each(fn func(Metrics) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.backends {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (NoopMetrics) Initialize(context.Context) error                       { return nil }
func (NoopMetrics) Flush(context.Context) error                            { return nil }
func (NoopMetrics) Shutdown(context.Context) error                         { return nil }
func (NoopMetrics) UpdateGauge(context.Context, string, float64) error     { return nil }
func (NoopMetrics) IncrementCounter(context.Context, string, uint64) error { return nil }
func (NoopMetrics) RecordHistogram(context.Context, string, float64) error { return nil }

// LogMetrics keeps running totals in memory and writes them to a slog
// logger on Flush. Individual updates are logged at debug level.
type LogMetrics struct {
	logger *slog.Logger

	mu       sync.RWMutex
	gauges   map[string]float64
	counters map[string]uint64
}

// NewLogMetrics uses slog.Default when logger is nil.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{
		logger:   logger,
		gauges:   map[string]float64{},
		counters: map[string]uint64{},
	}
}

func (l *LogMetrics) Initialize(context.Context) error { return nil }

func (l *LogMetrics) Flush(ctx context.Context) error {
	l.mu.RLock()
	gauges, counters := maps.Clone(l.gauges), maps.Clone(l.counters)
	l.mu.RUnlock()

	l.logger.InfoContext(ctx, "metrics", "gauges", gauges, "counters", counters)
	return nil
}

func (l *LogMetrics) Shutdown(ctx context.Context) error {
	return l.Flush(ctx)
}

func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	l.gauges[name] = value
	l.mu.Unlock()
	l.logger.DebugContext(ctx, "gauge", "name", name, "value", value)
	return nil
}

func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	l.counters[name] += value
	total := l.counters[name]
	l.mu.Unlock()
	l.logger.DebugContext(ctx, "counter", "name", name, "delta", value, "total", total)
	return nil
}

func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.logger.DebugContext(ctx, "histogram", "name", name, "value", value)
	return nil
}

// Counter returns the running total of a counter.
func (l *LogMetrics) Counter(name string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[name]
}

// Gauge returns the last value set on a gauge.
func (l *LogMetrics) Gauge(name string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gauges[name]
}

// Metric names.
const (
	// Runtime.
	MetricTransactionsSubmitted = "transactions_submitted"
	MetricTransactionsCommitted = "transactions_committed"
	MetricTransactionsFailed    = "transactions_failed"
	MetricTransactionsConflicts = "transactions_conflicts"
	MetricTransactionLatencyMs  = "transaction_latency_milliseconds"
	MetricLedgerSlot            = "ledger_slot"

	// Lending program, one counter per instruction outcome.
	MetricAmmsCreated       = "cash_amms_created"
	MetricPoolsCreated      = "cash_pools_created"
	MetricCashPoolsCreated  = "cash_cash_pools_created"
	MetricLendCount         = "cash_lend_count"
	MetricLendVolume        = "cash_lend_volume"
	MetricRedeemCount       = "cash_redeem_count"
	MetricRedeemVolume      = "cash_redeem_volume"
	MetricLendCashCount     = "cash_lend_cash_count"
	MetricLendCashVolume    = "cash_lend_cash_volume"
	MetricRedeemCashCount   = "cash_redeem_cash_count"
	MetricRedeemCashVolume  = "cash_redeem_cash_volume"
	MetricInstructionErrors = "cash_instruction_errors"

	// Journal pipeline.
	MetricUpdatesReceived                = "updates_received"
	MetricUpdatesProcessed               = "updates_processed"
	MetricUpdatesSuccessful              = "updates_successful"
	MetricUpdatesFailed                  = "updates_failed"
	MetricUpdatesQueued                  = "updates_queued"
	MetricUpdatesProcessTimeMilliseconds = "updates_process_time_milliseconds"
	MetricAccountUpdatesProcessed        = "account_updates_processed"
	MetricTransactionUpdatesProcessed    = "transaction_updates_processed"
	MetricEventsJournaled                = "events_journaled"
	MetricProcessorRetries               = "processor_retries"
)

// EventCounter names the per-event counter, e.g. "events_cash_lent" for
// CashLent.
func EventCounter(event string) string {
	return "events_" + utils.ToSnakeCase(event)
}
