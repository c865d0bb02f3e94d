package datasource

import (
	"context"
	"sync"

	"github.com/lugondev/go-cash/internal/metrics"
)

// DefaultFeedBuffer is the default capacity of a Feed.
const DefaultFeedBuffer = 256

// Feed is an in-process Datasource that the runtime publishes into.
// Publishing blocks while the buffer is full, so a slow journal applies
// backpressure instead of losing updates. After Close, publishes are dropped.
type Feed struct {
	ch        chan Update
	closeOnce sync.Once
	closed    chan struct{}
}

// NewFeed creates a Feed with the given buffer capacity.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		ch:     make(chan Update, buffer),
		closed: make(chan struct{}),
	}
}

// PublishTransaction queues a transaction update.
func (f *Feed) PublishTransaction(update *TransactionUpdate) {
	f.publish(NewTransactionUpdate(update))
}

// PublishAccount queues an account update.
func (f *Feed) PublishAccount(update *AccountUpdate) {
	f.publish(NewAccountUpdate(update))
}

func (f *Feed) publish(u Update) {
	select {
	case <-f.closed:
		return
	default:
	}
	select {
	case f.ch <- u:
	case <-f.closed:
	}
}

// Close stops the feed. Consume drains what is already buffered and returns.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

// Pending returns the number of buffered updates.
func (f *Feed) Pending() int {
	return len(f.ch)
}

// Consume forwards updates until ctx is cancelled or the feed is closed.
func (f *Feed) Consume(
	ctx context.Context,
	id DatasourceID,
	updates chan<- UpdateWithSource,
	m *metrics.Collection,
) error {
	m = metrics.OrNoop(m)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.closed:
			f.drain(ctx, id, updates)
			return nil
		case u := <-f.ch:
			if !f.forward(ctx, id, updates, u) {
				return nil
			}
			_ = m.UpdateGauge(ctx, metrics.MetricUpdatesQueued, float64(len(f.ch)))
		}
	}
}

func (f *Feed) drain(ctx context.Context, id DatasourceID, updates chan<- UpdateWithSource) {
	for {
		select {
		case u := <-f.ch:
			if !f.forward(ctx, id, updates, u) {
				return
			}
		default:
			return
		}
	}
}

func (f *Feed) forward(ctx context.Context, id DatasourceID, updates chan<- UpdateWithSource, u Update) bool {
	select {
	case updates <- UpdateWithSource{Update: u, DatasourceID: id}:
		return true
	case <-ctx.Done():
		return false
	}
}
