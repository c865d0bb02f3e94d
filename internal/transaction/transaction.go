// Package transaction processes journaled transactions as a whole: their
// metadata, decoded top-level instructions and the events their programs
// emitted.
//
// # Usage
//
// Create a TransactionPipe with an instruction decoder, an optional event
// decoder and a processor. The pipeline runs it once per transaction that
// passes the pipe's filters.
package transaction

import (
	"context"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/filter"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	plog "github.com/lugondev/go-cash/pkg/log"
	"github.com/lugondev/go-cash/pkg/types"
)

// TransactionMetadata describes one executed transaction.
type TransactionMetadata struct {
	// Slot is the commit slot, or the ledger slot at execution on failure.
	Slot uint64

	// Signature is the first signature of the transaction.
	Signature types.Signature

	// FeePayer is the first signer.
	FeePayer types.Pubkey

	// Signers are all verified signers in order.
	Signers []types.Pubkey

	// BlockTime is the Unix timestamp of execution.
	BlockTime int64

	// Logs are the program log lines.
	Logs []string

	// Err is the failure message, empty on success.
	Err string

	// ErrCode is the coded error of the failure, if any.
	ErrCode string
}

// NewTransactionMetadataFromUpdate takes the fee payer from the first signer.
func NewTransactionMetadataFromUpdate(update *datasource.TransactionUpdate) *TransactionMetadata {
	m := &TransactionMetadata{
		Slot:      update.Slot,
		Signature: update.Signature,
		Signers:   update.Signers,
		BlockTime: update.BlockTime,
		Logs:      update.Logs,
		Err:       update.Err,
		ErrCode:   update.ErrCode,
	}
	if len(update.Signers) > 0 {
		m.FeePayer = update.Signers[0]
	}
	return m
}

// Succeeded reports whether the transaction committed.
func (m *TransactionMetadata) Succeeded() bool {
	return m.Err == ""
}

// InstructionMetadata returns the metadata of the top-level instruction at index.
func (m *TransactionMetadata) InstructionMetadata(index int) *instruction.InstructionMetadata {
	return &instruction.InstructionMetadata{
		Signature: m.Signature,
		Slot:      m.Slot,
		BlockTime: m.BlockTime,
		Index:     index,
		Succeeded: m.Succeeded(),
	}
}

// EventDecoder decodes "Program data:" payloads.
type EventDecoder interface {
	// DecodeEvent returns false if the payload is not an event of a program
	// this decoder knows.
	DecodeEvent(programID types.Pubkey, data []byte) (name string, event any, ok bool)
}

// EventDecoderFunc is a function type that implements EventDecoder.
type EventDecoderFunc func(programID types.Pubkey, data []byte) (string, any, bool)

// DecodeEvent implements EventDecoder interface.
func (f EventDecoderFunc) DecodeEvent(programID types.Pubkey, data []byte) (string, any, bool) {
	return f(programID, data)
}

// DecodedEvent is one event found in a transaction's logs.
type DecodedEvent struct {
	// ProgramID is the program that was executing when the event was logged.
	ProgramID types.Pubkey

	// Index is the position among the transaction's events.
	Index int

	Name string
	Data any
}

// DecodeEvents returns every event in logs that decoder recognizes, in log
// order.
func DecodeEvents(logs []string, decoder EventDecoder) []DecodedEvent {
	if decoder == nil {
		return nil
	}
	var events []DecodedEvent
	for _, pd := range plog.NewParser().ExtractProgramData(logs) {
		programID, err := solana.PublicKeyFromBase58(pd.ProgramID)
		if err != nil {
			continue
		}
		name, event, ok := decoder.DecodeEvent(programID, pd.Data)
		if !ok {
			continue
		}
		events = append(events, DecodedEvent{
			ProgramID: programID,
			Index:     len(events),
			Name:      name,
			Data:      event,
		})
	}
	return events
}

// DecodedInstructionWithMetadata is a recognized top-level instruction
// together with its position in the transaction.
type DecodedInstructionWithMetadata[T any] struct {
	Metadata           *instruction.InstructionMetadata
	DecodedInstruction *instruction.DecodedInstruction[T]
}

type TransactionProcessorInput[T any] struct {
	Metadata *TransactionMetadata

	// Update is the raw update, including instructions no decoder knew.
	Update *datasource.TransactionUpdate

	// Instructions holds the top-level instructions the decoder recognized.
	Instructions []DecodedInstructionWithMetadata[T]

	// Events holds the decoded events. Failed transactions have none.
	Events []DecodedEvent
}

// TransactionPipe decodes a whole transaction and hands it to a processor.
type TransactionPipe[T any] struct {
	instructions instruction.InstructionDecoder[T]
	events       EventDecoder
	processor    processor.Processor[TransactionProcessorInput[T]]
	filters      []filter.Filter
	logger       *slog.Logger
}

// NewTransactionPipe builds a pipe. Either decoder may be nil, in which case
// the input carries no instructions or no events.
func NewTransactionPipe[T any](
	instructions instruction.InstructionDecoder[T],
	events EventDecoder,
	proc processor.Processor[TransactionProcessorInput[T]],
	filters ...filter.Filter,
) *TransactionPipe[T] {
	return &TransactionPipe[T]{
		instructions: instructions,
		events:       events,
		processor:    proc,
		filters:      filters,
		logger:       slog.Default(),
	}
}

func (p *TransactionPipe[T]) WithLogger(logger *slog.Logger) *TransactionPipe[T] {
	p.logger = logger
	return p
}

func (p *TransactionPipe[T]) GetFilters() []filter.Filter {
	return p.filters
}

func (p *TransactionPipe[T]) decodeInstructions(metadata *TransactionMetadata, update *datasource.TransactionUpdate) []DecodedInstructionWithMetadata[T] {
	if p.instructions == nil {
		return nil
	}
	var out []DecodedInstructionWithMetadata[T]
	for i := range update.Instructions {
		decoded := p.instructions.DecodeInstruction(&update.Instructions[i])
		if decoded == nil {
			continue
		}
		out = append(out, DecodedInstructionWithMetadata[T]{
			Metadata:           metadata.InstructionMetadata(i),
			DecodedInstruction: decoded,
		})
	}
	return out
}

func (p *TransactionPipe[T]) RunTransaction(ctx context.Context, update *datasource.TransactionUpdate, m *metrics.Collection) error {
	metadata := NewTransactionMetadataFromUpdate(update)
	input := TransactionProcessorInput[T]{
		Metadata:     metadata,
		Update:       update,
		Instructions: p.decodeInstructions(metadata, update),
	}
	if metadata.Succeeded() {
		input.Events = DecodeEvents(metadata.Logs, p.events)
	}
	p.logger.DebugContext(ctx, "transaction decoded",
		"signature", metadata.Signature.String(),
		"slot", metadata.Slot,
		"instructions", len(input.Instructions),
		"events", len(input.Events),
	)
	return p.processor.Process(ctx, input, m)
}

// TransactionPipeRunner is a TransactionPipe with its type parameter erased.
type TransactionPipeRunner interface {
	RunTransaction(ctx context.Context, update *datasource.TransactionUpdate, m *metrics.Collection) error
	GetFilters() []filter.Filter
}

var _ TransactionPipeRunner = (*TransactionPipe[any])(nil)
