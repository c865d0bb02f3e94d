package journal

import (
	"context"

	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/transaction"
)

// RecordEvent updates the protocol counters for one decoded cash event.
// Unknown events are ignored.
func RecordEvent(ctx context.Context, m *metrics.Collection, event any) {
	m = metrics.OrNoop(m)
	switch ev := event.(type) {
	case *cash.AmmCreatedEvent:
		_ = m.IncrementCounter(ctx, metrics.MetricAmmsCreated, 1)
	case *cash.PoolCreatedEvent:
		if state.PoolType(ev.PoolType) == state.PoolTypeCash {
			_ = m.IncrementCounter(ctx, metrics.MetricCashPoolsCreated, 1)
		} else {
			_ = m.IncrementCounter(ctx, metrics.MetricPoolsCreated, 1)
		}
	case *cash.LentEvent:
		_ = m.IncrementCounter(ctx, metrics.MetricLendCount, 1)
		_ = m.IncrementCounter(ctx, metrics.MetricLendVolume, ev.Amount)
	case *cash.RedeemedEvent:
		_ = m.IncrementCounter(ctx, metrics.MetricRedeemCount, 1)
		_ = m.IncrementCounter(ctx, metrics.MetricRedeemVolume, ev.Amount)
	case *cash.CashLentEvent:
		_ = m.IncrementCounter(ctx, metrics.MetricLendCashCount, 1)
		_ = m.IncrementCounter(ctx, metrics.MetricLendCashVolume, ev.Amount)
	case *cash.CashRedeemedEvent:
		_ = m.IncrementCounter(ctx, metrics.MetricRedeemCashCount, 1)
		_ = m.IncrementCounter(ctx, metrics.MetricRedeemCashVolume, ev.Amount)
	}
}

// EventMetricsProcessor counts the cash events of each transaction.
func EventMetricsProcessor[T any]() processor.Processor[transaction.TransactionProcessorInput[T]] {
	return processor.ProcessorFunc[transaction.TransactionProcessorInput[T]](
		func(ctx context.Context, input transaction.TransactionProcessorInput[T], m *metrics.Collection) error {
			for _, ev := range input.Events {
				_ = metrics.OrNoop(m).IncrementCounter(ctx, metrics.EventCounter(ev.Name), 1)
				RecordEvent(ctx, m, ev.Data)
			}
			return nil
		})
}
