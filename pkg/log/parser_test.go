package log

import (
	"bytes"
	"errors"
	"testing"
)

func TestFormatAndParseRoundTrip(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name    string
		line    string
		typ     LogType
		program string
		message string
		height  int
	}{
		{name: "invoke", line: FormatInvoke("Prog111", 2), typ: LogTypeInvoke, program: "Prog111", height: 2},
		{name: "success", line: FormatSuccess("Prog111"), typ: LogTypeSuccess, program: "Prog111"},
		{name: "failed", line: FormatFailed("Prog111", errors.New("boom")), typ: LogTypeFailed, program: "Prog111", message: "boom"},
		{name: "log", line: FormatLog("Instruction: Lend"), typ: LogTypeLog, message: "Instruction: Lend"},
		{name: "unknown", line: "something else", typ: LogTypeUnknown},
		{name: "bad depth", line: "Program Prog111 invoke [x]", typ: LogTypeUnknown},
		{name: "consumed units", line: "Program Prog111 consumed 200 of 1000 compute units", typ: LogTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.line)
			if got.Type != tt.typ {
				t.Fatalf("expected type %s, got %s", tt.typ, got.Type)
			}
			if got.ProgramID != tt.program {
				t.Errorf("expected program %q, got %q", tt.program, got.ProgramID)
			}
			if got.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, got.Message)
			}
			if got.StackHeight != tt.height {
				t.Errorf("expected height %d, got %d", tt.height, got.StackHeight)
			}
		})
	}
}

func TestExtractProgramDataTracksInvokeStack(t *testing.T) {
	logs := []string{
		FormatInvoke("Outer", 1),
		FormatLog("Instruction: Lend"),
		FormatInvoke("Inner", 2),
		FormatData([]byte{1}),
		FormatSuccess("Inner"),
		FormatData([]byte{2, 3}),
		FormatSuccess("Outer"),
	}

	got := NewParser().ExtractProgramData(logs)
	if len(got) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(got))
	}
	if got[0].ProgramID != "Inner" || !bytes.Equal(got[0].Data, []byte{1}) {
		t.Errorf("unexpected first payload %+v", got[0])
	}
	if got[1].ProgramID != "Outer" || !bytes.Equal(got[1].Data, []byte{2, 3}) {
		t.Errorf("unexpected second payload %+v", got[1])
	}
}

func TestExtractProgramLogs(t *testing.T) {
	logs := []string{
		FormatInvoke("Outer", 1),
		FormatLog("first"),
		FormatLog("second"),
		FormatSuccess("Outer"),
	}
	got := NewParser().ExtractProgramLogs(logs)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected logs %v", got)
	}
}
