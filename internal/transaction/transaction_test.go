package transaction

import (
	"context"
	"testing"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/internal/instruction"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/processor"
	plog "github.com/lugondev/go-cash/pkg/log"
	"github.com/lugondev/go-cash/pkg/types"
)

var (
	lending = types.Pubkey{0xc}
	tokens  = types.Pubkey{0xd}
)

// tagEvents decodes any payload from the lending program, named by its
// first byte.
var tagEvents = EventDecoderFunc(func(programID types.Pubkey, data []byte) (string, any, bool) {
	if programID != lending {
		return "", nil, false
	}
	return string(rune('A' + data[0])), data[0], true
})

func logs() []string {
	return []string{
		plog.FormatInvoke(lending.String(), 1),
		plog.FormatData([]byte{0}),
		plog.FormatInvoke(tokens.String(), 2),
		plog.FormatData([]byte{9}),
		plog.FormatSuccess(tokens.String()),
		plog.FormatData([]byte{1}),
		plog.FormatSuccess(lending.String()),
	}
}

func TestDecodeEventsAttributesToRunningProgram(t *testing.T) {
	events := DecodeEvents(logs(), tagEvents)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	for i, want := range []string{"A", "B"} {
		if events[i].Name != want || events[i].Index != i || events[i].ProgramID != lending {
			t.Errorf("events[%d] = %+v", i, events[i])
		}
	}
	if DecodeEvents(logs(), nil) != nil {
		t.Error("nil decoder should yield no events")
	}
}

func TestTransactionPipe(t *testing.T) {
	decoder := instruction.InstructionDecoderFunc[string](func(ix *types.Instruction) *instruction.DecodedInstruction[string] {
		if ix.ProgramID != lending {
			return nil
		}
		return &instruction.DecodedInstruction[string]{ProgramID: lending, Name: "lend"}
	})

	var got []TransactionProcessorInput[string]
	proc := processor.ProcessorFunc[TransactionProcessorInput[string]](
		func(_ context.Context, in TransactionProcessorInput[string], _ *metrics.Collection) error {
			got = append(got, in)
			return nil
		})
	pipe := NewTransactionPipe[string](decoder, tagEvents, proc)

	payer := types.Pubkey{7}
	committed := &datasource.TransactionUpdate{
		Signers:      []types.Pubkey{payer, {8}},
		Instructions: []types.Instruction{{ProgramID: tokens}, {ProgramID: lending}},
		Logs:         logs(),
		Slot:         4,
	}
	failed := *committed
	failed.Err = "insufficient balance"

	for _, u := range []*datasource.TransactionUpdate{committed, &failed} {
		if err := pipe.RunTransaction(context.Background(), u, metrics.NewCollection()); err != nil {
			t.Fatalf("RunTransaction() error = %v", err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("processed %d inputs, want 2", len(got))
	}

	ok := got[0]
	if ok.Metadata.FeePayer != payer || !ok.Metadata.Succeeded() {
		t.Errorf("metadata = %+v", ok.Metadata)
	}
	if len(ok.Instructions) != 1 || ok.Instructions[0].Metadata.Index != 1 {
		t.Fatalf("instructions = %+v", ok.Instructions)
	}
	if len(ok.Events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(ok.Events))
	}

	if got[1].Metadata.Succeeded() || got[1].Events != nil {
		t.Errorf("failed transaction decoded events: %+v", got[1].Events)
	}
	if got[1].Instructions[0].Metadata.Succeeded {
		t.Error("instruction of a failed transaction marked succeeded")
	}
}
