// Package log formats and parses the program log lines recorded for every
// executed transaction.
//
// The runtime writes lines in the familiar Solana shape:
//
//	Program <id> invoke [1]
//	Program log: Instruction: Lend
//	Program data: <base64>
//	Program <id> success
//
// Journal processors parse them back to recover emitted events.
package log

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

type LogType int

const (
	LogTypeUnknown LogType = iota
	LogTypeInvoke
	LogTypeSuccess
	LogTypeFailed
	LogTypeData
	LogTypeLog
)

var logTypeNames = [...]string{"unknown", "invoke", "success", "failed", "data", "log"}

func (t LogType) String() string {
	if t < 0 || int(t) >= len(logTypeNames) {
		return logTypeNames[0]
	}
	return logTypeNames[t]
}

const (
	linePrefix = "Program "
	logPrefix  = "Program log: "
	dataPrefix = "Program data: "
)

// ParsedLog is one classified line. Which fields are set depends on Type.
type ParsedLog struct {
	Type LogType
	// StackHeight is the 1-based call depth of an invoke line.
	StackHeight int
	// ProgramID is set for invoke, success and failed lines.
	ProgramID string
	// Data is the decoded payload of a data line; nil if it was not valid
	// base64.
	Data []byte
	// Message is the text of a log line or the reason of a failed line.
	Message string
	RawLog  string
}

func FormatInvoke(programID string, depth int) string {
	return fmt.Sprintf("Program %s invoke [%d]", programID, depth)
}

func FormatSuccess(programID string) string {
	return "Program " + programID + " success"
}

func FormatFailed(programID string, reason error) string {
	return fmt.Sprintf("Program %s failed: %v", programID, reason)
}

func FormatLog(message string) string {
	return logPrefix + message
}

func FormatData(data []byte) string {
	return dataPrefix + base64.StdEncoding.EncodeToString(data)
}

// LogParser classifies program log lines. It holds no state and is safe
// for concurrent use.
type LogParser struct{}

func NewParser() *LogParser { return &LogParser{} }

func (p *LogParser) Parse(line string) *ParsedLog {
	parsed := &ParsedLog{RawLog: line}

	if payload, ok := strings.CutPrefix(line, dataPrefix); ok && payload != "" {
		parsed.Type = LogTypeData
		if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
			parsed.Data = data
		}
		return parsed
	}
	if msg, ok := strings.CutPrefix(line, logPrefix); ok && msg != "" {
		parsed.Type = LogTypeLog
		parsed.Message = msg
		return parsed
	}

	rest, ok := strings.CutPrefix(line, linePrefix)
	if !ok {
		return parsed
	}
	program, tail, ok := strings.Cut(rest, " ")
	if !ok || program == "" {
		return parsed
	}
	switch {
	case tail == "success":
		parsed.Type = LogTypeSuccess
		parsed.ProgramID = program
	case strings.HasPrefix(tail, "failed: "):
		parsed.Type = LogTypeFailed
		parsed.ProgramID = program
		parsed.Message = strings.TrimPrefix(tail, "failed: ")
	case strings.HasPrefix(tail, "invoke [") && strings.HasSuffix(tail, "]"):
		depth, err := strconv.Atoi(tail[len("invoke [") : len(tail)-1])
		if err != nil || depth < 1 {
			return parsed
		}
		parsed.Type = LogTypeInvoke
		parsed.ProgramID = program
		parsed.StackHeight = depth
	}
	return parsed
}

// ProgramData is a decoded data payload attributed to the program that was
// executing when it was written.
type ProgramData struct {
	ProgramID string
	Data      []byte
}

// ExtractProgramData replays the invoke stack over lines and returns each
// non-empty payload with the program on top of the stack at that point.
func (p *LogParser) ExtractProgramData(lines []string) []ProgramData {
	var out []ProgramData
	var stack []string
	for _, line := range lines {
		parsed := p.Parse(line)
		switch parsed.Type {
		case LogTypeInvoke:
			stack = append(stack, parsed.ProgramID)
		case LogTypeSuccess, LogTypeFailed:
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
		case LogTypeData:
			if len(parsed.Data) == 0 {
				continue
			}
			var program string
			if n := len(stack); n > 0 {
				program = stack[n-1]
			}
			out = append(out, ProgramData{ProgramID: program, Data: parsed.Data})
		}
	}
	return out
}

// ExtractProgramLogs returns the text of every log line.
func (p *LogParser) ExtractProgramLogs(lines []string) []string {
	var msgs []string
	for _, line := range lines {
		if parsed := p.Parse(line); parsed.Type == LogTypeLog {
			msgs = append(msgs, parsed.Message)
		}
	}
	return msgs
}
