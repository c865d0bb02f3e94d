package pipeline

import (
	"log/slog"
	"time"

	"github.com/lugondev/go-cash/internal/account"
	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/transaction"
)

// PipelineBuilder assembles a Pipeline. Zero or negative settings keep the
// defaults.
type PipelineBuilder struct {
	p Pipeline
}

func Builder() *PipelineBuilder {
	return &PipelineBuilder{p: Pipeline{
		metrics:       metrics.NewCollection(),
		flushInterval: DefaultMetricsFlushInterval,
		bufferSize:    DefaultChannelBufferSize,
		logger:        slog.Default(),
	}}
}

func (b *PipelineBuilder) Datasource(id datasource.DatasourceID, ds datasource.Datasource) *PipelineBuilder {
	b.p.sources = append(b.p.sources, source{id: id, ds: ds})
	return b
}

func (b *PipelineBuilder) AccountPipe(pipe account.AccountPipeRunner) *PipelineBuilder {
	b.p.accounts = append(b.p.accounts, pipe)
	return b
}

func (b *PipelineBuilder) InstructionPipe(pipe instruction.InstructionPipeRunner) *PipelineBuilder {
	b.p.instructions = append(b.p.instructions, pipe)
	return b
}

func (b *PipelineBuilder) TransactionPipe(pipe transaction.TransactionPipeRunner) *PipelineBuilder {
	b.p.transactions = append(b.p.transactions, pipe)
	return b
}

func (b *PipelineBuilder) Metrics(m *metrics.Collection) *PipelineBuilder {
	if m != nil {
		b.p.metrics = m
	}
	return b
}

func (b *PipelineBuilder) MetricsFlushInterval(d time.Duration) *PipelineBuilder {
	if d > 0 {
		b.p.flushInterval = d
	}
	return b
}

func (b *PipelineBuilder) ChannelBufferSize(n int) *PipelineBuilder {
	if n > 0 {
		b.p.bufferSize = n
	}
	return b
}

func (b *PipelineBuilder) Logger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		b.p.logger = logger.With("component", "pipeline")
	}
	return b
}

// Build returns the pipeline. The builder must not be reused afterwards.
func (b *PipelineBuilder) Build() *Pipeline {
	p := b.p
	return &p
}
