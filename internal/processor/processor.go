// Package processor defines the Processor interface that journal pipes hand
// their decoded updates to, plus a few combinators.
package processor

import (
	"context"
	"time"

	"github.com/lugondev/go-cash/internal/metrics"
)

// Processor handles one decoded update of type T.
type Processor[T any] interface {
	Process(ctx context.Context, data T, metrics *metrics.Collection) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, data T, metrics *metrics.Collection) error

func (f ProcessorFunc[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	return f(ctx, data, metrics)
}

// ChainedProcessor hands the same input to each processor in order and
// stops at the first error.
type ChainedProcessor[T any] struct {
	processors []Processor[T]
}

func NewChainedProcessor[T any](processors ...Processor[T]) *ChainedProcessor[T] {
	return &ChainedProcessor[T]{processors: processors}
}

// Add appends p to the chain.
func (c *ChainedProcessor[T]) Add(p Processor[T]) {
	c.processors = append(c.processors, p)
}

func (c *ChainedProcessor[T]) Process(ctx context.Context, data T, m *metrics.Collection) error {
	for _, p := range c.processors {
		if err := p.Process(ctx, data, m); err != nil {
			return err
		}
	}
	return nil
}

// When runs p only for inputs keep accepts.
func When[T any](keep func(T) bool, p Processor[T]) Processor[T] {
	return ProcessorFunc[T](func(ctx context.Context, data T, m *metrics.Collection) error {
		if !keep(data) {
			return nil
		}
		return p.Process(ctx, data, m)
	})
}

// RetryProcessor re-runs a failing processor, waiting delay before the
// first retry and doubling it after each one. It gives up early when ctx
// ends.
type RetryProcessor[T any] struct {
	processor Processor[T]
	attempts  int
	delay     time.Duration
}

// NewRetryProcessor wraps p. attempts counts the first call; values below
// one are treated as one.
func NewRetryProcessor[T any](p Processor[T], attempts int, delay time.Duration) *RetryProcessor[T] {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryProcessor[T]{processor: p, attempts: attempts, delay: delay}
}

func (r *RetryProcessor[T]) Process(ctx context.Context, data T, m *metrics.Collection) error {
	delay := r.delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = r.processor.Process(ctx, data, m); err == nil || attempt == r.attempts {
			return err
		}
		_ = metrics.OrNoop(m).IncrementCounter(ctx, metrics.MetricProcessorRetries, 1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
	}
}
