package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/pkg/types"
)

// idNamespace scopes the deterministic model ids so re-journaling the same
// update overwrites instead of duplicating.
var idNamespace = uuid.MustParse("8f6b1f4e-3c1d-5a7e-9a53-6a0c2f1d7b42")

// ModelID derives a stable id from the parts identifying a record.
func ModelID(kind string, parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(kind+":"+strings.Join(parts, ":"))).String()
}

type AccountModel struct {
	ID        string    `json:"id" bson:"_id,omitempty" db:"id"`
	Pubkey    string    `json:"pubkey" bson:"pubkey" db:"pubkey"`
	Owner     string    `json:"owner" bson:"owner" db:"owner"`
	Kind      string    `json:"kind" bson:"kind" db:"kind"`
	Data      []byte    `json:"data" bson:"data" db:"data"`
	Version   uint64    `json:"version" bson:"version" db:"version"`
	Slot      uint64    `json:"slot" bson:"slot" db:"slot"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

type TransactionModel struct {
	ID              string    `json:"id" bson:"_id,omitempty" db:"id"`
	Signature       string    `json:"signature" bson:"signature" db:"signature"`
	Slot            uint64    `json:"slot" bson:"slot" db:"slot"`
	BlockTime       int64     `json:"block_time" bson:"block_time" db:"block_time"`
	Success         bool      `json:"success" bson:"success" db:"success"`
	ErrorCode       string    `json:"error_code,omitempty" bson:"error_code,omitempty" db:"error_code"`
	ErrorMessage    string    `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message"`
	Signers         []string  `json:"signers" bson:"signers" db:"signers"`
	NumInstructions int       `json:"num_instructions" bson:"num_instructions" db:"num_instructions"`
	LogMessages     []string  `json:"log_messages,omitempty" bson:"log_messages,omitempty" db:"log_messages"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

type InstructionModel struct {
	ID               string    `json:"id" bson:"_id,omitempty" db:"id"`
	Signature        string    `json:"signature" bson:"signature" db:"signature"`
	InstructionIndex int       `json:"instruction_index" bson:"instruction_index" db:"instruction_index"`
	ProgramID        string    `json:"program_id" bson:"program_id" db:"program_id"`
	Name             string    `json:"name" bson:"name" db:"name"`
	Data             []byte    `json:"data" bson:"data" db:"data"`
	Accounts         []string  `json:"accounts" bson:"accounts" db:"accounts"`
	Slot             uint64    `json:"slot" bson:"slot" db:"slot"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

type EventModel struct {
	ID         string         `json:"id" bson:"_id,omitempty" db:"id"`
	Signature  string         `json:"signature" bson:"signature" db:"signature"`
	EventIndex int            `json:"event_index" bson:"event_index" db:"event_index"`
	ProgramID  string         `json:"program_id" bson:"program_id" db:"program_id"`
	EventName  string         `json:"event_name" bson:"event_name" db:"event_name"`
	Data       map[string]any `json:"data" bson:"data" db:"data"`
	Slot       uint64         `json:"slot" bson:"slot" db:"slot"`
	BlockTime  int64          `json:"block_time" bson:"block_time" db:"block_time"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at" db:"created_at"`
}

// AccountUpdateToModel converts a committed account write. kind is the
// decoded account type, empty when unknown.
func AccountUpdateToModel(update *datasource.AccountUpdate, kind string) *AccountModel {
	now := time.Now().UTC()
	pubkey := update.Pubkey.String()
	return &AccountModel{
		ID:        ModelID("account", pubkey),
		Pubkey:    pubkey,
		Owner:     update.Account.Owner.String(),
		Kind:      kind,
		Data:      update.Account.Data,
		Version:   update.Version,
		Slot:      update.Slot,
		UpdatedAt: now,
		CreatedAt: now,
	}
}

func TransactionUpdateToModel(update *datasource.TransactionUpdate) *TransactionModel {
	signers := make([]string, 0, len(update.Signers))
	for _, s := range update.Signers {
		signers = append(signers, s.String())
	}

	sig := update.Signature.String()
	return &TransactionModel{
		ID:              ModelID("transaction", sig),
		Signature:       sig,
		Slot:            update.Slot,
		BlockTime:       update.BlockTime,
		Success:         update.Succeeded(),
		ErrorCode:       update.ErrCode,
		ErrorMessage:    update.Err,
		Signers:         signers,
		NumInstructions: len(update.Instructions),
		LogMessages:     update.Logs,
		CreatedAt:       time.Now().UTC(),
	}
}

// InstructionToModel converts the top-level instruction at index. name is
// the decoded instruction name, empty when the program is unknown.
func InstructionToModel(signature types.Signature, slot uint64, index int, ix *types.Instruction, name string) *InstructionModel {
	accounts := make([]string, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		accounts = append(accounts, meta.Pubkey.String())
	}

	sig := signature.String()
	return &InstructionModel{
		ID:               ModelID("instruction", sig, strconv.Itoa(index)),
		Signature:        sig,
		InstructionIndex: index,
		ProgramID:        ix.ProgramID.String(),
		Name:             name,
		Data:             ix.Data,
		Accounts:         accounts,
		Slot:             slot,
		CreatedAt:        time.Now().UTC(),
	}
}

// EventToModel converts the index-th event emitted by a transaction. event
// is any JSON-encodable value.
func EventToModel(signature types.Signature, slot uint64, blockTime int64, index int, programID types.Pubkey, name string, event any) (*EventModel, error) {
	data, err := EventData(event)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", name, err)
	}

	sig := signature.String()
	return &EventModel{
		ID:         ModelID("event", sig, strconv.Itoa(index)),
		Signature:  sig,
		EventIndex: index,
		ProgramID:  programID.String(),
		EventName:  name,
		Data:       data,
		Slot:       slot,
		BlockTime:  blockTime,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// EventData flattens an event into a document. Integers are kept as int64
// when they fit and as decimal strings otherwise, so u64 amounts survive
// every backend without float rounding.
func EventData(event any) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	for k, v := range out {
		out[k] = normalizeNumber(v)
	}
	return out, nil
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		return n.String()
	case map[string]any:
		for k, inner := range n {
			n[k] = normalizeNumber(inner)
		}
		return n
	case []any:
		for i, inner := range n {
			n[i] = normalizeNumber(inner)
		}
		return n
	default:
		return v
	}
}
