// Package instruction decodes and processes the top-level instructions of
// journaled transactions.
//
// A decoder turns a raw instruction into a named, typed DecodedInstruction.
// An InstructionPipe pairs a decoder with a processor; instructions the
// decoder does not recognize are skipped.
package instruction

import (
	"context"
	"log/slog"

	"github.com/lugondev/go-cash/internal/filter"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	"github.com/lugondev/go-cash/pkg/types"
)

// InstructionMetadata locates an instruction within its transaction.
type InstructionMetadata struct {
	Signature types.Signature
	Slot      uint64
	BlockTime int64
	// Index is the position among the transaction's top-level instructions.
	Index     int
	Succeeded bool
}

// DecodedInstruction is an instruction decoded into its name and arguments.
type DecodedInstruction[T any] struct {
	ProgramID types.Pubkey
	Name      string
	Data      T
	Accounts  []types.AccountMeta
}

// InstructionDecoder returns nil for instructions it does not understand.
type InstructionDecoder[T any] interface {
	DecodeInstruction(ix *types.Instruction) *DecodedInstruction[T]
}

type InstructionDecoderFunc[T any] func(ix *types.Instruction) *DecodedInstruction[T]

func (f InstructionDecoderFunc[T]) DecodeInstruction(ix *types.Instruction) *DecodedInstruction[T] {
	return f(ix)
}

// ProgramInstructionDecoder decodes the instructions addressed to one
// program. A payload that fails to decode is treated as unrecognized.
type ProgramInstructionDecoder[T any] struct {
	programID types.Pubkey
	decode    func(ix *types.Instruction) (name string, args T, err error)
}

func NewProgramInstructionDecoder[T any](programID types.Pubkey, decode func(ix *types.Instruction) (string, T, error)) *ProgramInstructionDecoder[T] {
	return &ProgramInstructionDecoder[T]{programID: programID, decode: decode}
}

func (d *ProgramInstructionDecoder[T]) DecodeInstruction(ix *types.Instruction) *DecodedInstruction[T] {
	if ix.ProgramID != d.programID {
		return nil
	}
	name, args, err := d.decode(ix)
	if err != nil {
		return nil
	}
	return &DecodedInstruction[T]{ProgramID: ix.ProgramID, Name: name, Data: args, Accounts: ix.Accounts}
}

// CompositeInstructionDecoder returns the first non-nil result of its
// decoders.
type CompositeInstructionDecoder[T any] struct {
	decoders []InstructionDecoder[T]
}

func NewCompositeInstructionDecoder[T any](decoders ...InstructionDecoder[T]) *CompositeInstructionDecoder[T] {
	return &CompositeInstructionDecoder[T]{decoders: decoders}
}

func (c *CompositeInstructionDecoder[T]) DecodeInstruction(ix *types.Instruction) *DecodedInstruction[T] {
	for _, d := range c.decoders {
		if decoded := d.DecodeInstruction(ix); decoded != nil {
			return decoded
		}
	}
	return nil
}

// Erase widens a typed decoder to one producing any, so decoders for
// different programs can share a composite.
func Erase[T any](d InstructionDecoder[T]) InstructionDecoder[any] {
	return InstructionDecoderFunc[any](func(ix *types.Instruction) *DecodedInstruction[any] {
		decoded := d.DecodeInstruction(ix)
		if decoded == nil {
			return nil
		}
		return &DecodedInstruction[any]{
			ProgramID: decoded.ProgramID,
			Name:      decoded.Name,
			Data:      decoded.Data,
			Accounts:  decoded.Accounts,
		}
	})
}

type InstructionProcessorInput[T any] struct {
	Metadata           *InstructionMetadata
	DecodedInstruction *DecodedInstruction[T]
	RawInstruction     *types.Instruction
}

// InstructionPipe decodes instructions and processes the recognized ones.
// Its filters apply to the enclosing transaction.
type InstructionPipe[T any] struct {
	decoder   InstructionDecoder[T]
	processor processor.Processor[InstructionProcessorInput[T]]
	filters   []filter.Filter
	logger    *slog.Logger
}

func NewInstructionPipe[T any](
	decoder InstructionDecoder[T],
	proc processor.Processor[InstructionProcessorInput[T]],
	filters ...filter.Filter,
) *InstructionPipe[T] {
	return &InstructionPipe[T]{
		decoder:   decoder,
		processor: proc,
		filters:   filters,
		logger:    slog.Default(),
	}
}

func (p *InstructionPipe[T]) WithLogger(logger *slog.Logger) *InstructionPipe[T] {
	p.logger = logger
	return p
}

func (p *InstructionPipe[T]) GetFilters() []filter.Filter {
	return p.filters
}

func (p *InstructionPipe[T]) RunInstruction(ctx context.Context, meta *InstructionMetadata, ix *types.Instruction, m *metrics.Collection) error {
	decoded := p.decoder.DecodeInstruction(ix)
	if decoded == nil {
		return nil
	}
	p.logger.DebugContext(ctx, "instruction decoded",
		"signature", meta.Signature.String(),
		"index", meta.Index,
		"name", decoded.Name,
	)
	return p.processor.Process(ctx, InstructionProcessorInput[T]{
		Metadata:           meta,
		DecodedInstruction: decoded,
		RawInstruction:     ix,
	}, m)
}

// InstructionPipeRunner is an InstructionPipe with T erased.
type InstructionPipeRunner interface {
	RunInstruction(ctx context.Context, meta *InstructionMetadata, ix *types.Instruction, m *metrics.Collection) error
	GetFilters() []filter.Filter
}

var _ InstructionPipeRunner = (*InstructionPipe[any])(nil)
