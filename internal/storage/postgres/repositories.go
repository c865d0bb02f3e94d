package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-cash/internal/storage"
)

// limitArg maps a non-positive limit to NULL, which postgres reads as
// LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

type postgresAccountRepository struct {
	pool *pgxpool.Pool
}

const upsertAccount = `
	INSERT INTO accounts (id, pubkey, owner, kind, data, version, slot, updated_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (pubkey) DO UPDATE SET
		owner = $3, kind = $4, data = $5, version = $6, slot = $7, updated_at = $8
	WHERE accounts.version <= EXCLUDED.version
`

const selectAccount = `SELECT id, pubkey, owner, kind, data, version, slot, updated_at, created_at FROM accounts`

func accountArgs(a *storage.AccountModel) []any {
	return []any{a.ID, a.Pubkey, a.Owner, a.Kind, a.Data, a.Version, a.Slot, a.UpdatedAt, a.CreatedAt}
}

func scanAccount(row pgx.Row) (*storage.AccountModel, error) {
	var a storage.AccountModel
	err := row.Scan(&a.ID, &a.Pubkey, &a.Owner, &a.Kind, &a.Data, &a.Version, &a.Slot, &a.UpdatedAt, &a.CreatedAt)
	return &a, err
}

func (r *postgresAccountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	_, err := r.pool.Exec(ctx, upsertAccount, accountArgs(account)...)
	return err
}

func (r *postgresAccountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	return execBatch(ctx, r.pool, upsertAccount, accounts, infallible(accountArgs))
}

func (r *postgresAccountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return queryOne(ctx, r.pool, scanAccount, selectAccount+` WHERE pubkey = $1`, pubkey)
}

func (r *postgresAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return queryMany(ctx, r.pool, scanAccount, selectAccount+` WHERE owner = $1 ORDER BY slot DESC, pubkey LIMIT $2 OFFSET $3`,
		owner, limitArg(limit), offset)
}

func (r *postgresAccountRepository) FindByKind(ctx context.Context, kind string, limit int, offset int) ([]*storage.AccountModel, error) {
	return queryMany(ctx, r.pool, scanAccount, selectAccount+` WHERE kind = $1 ORDER BY slot DESC, pubkey LIMIT $2 OFFSET $3`,
		kind, limitArg(limit), offset)
}

type postgresTransactionRepository struct {
	pool *pgxpool.Pool
}

const upsertTransaction = `
	INSERT INTO transactions (id, signature, slot, block_time, success, error_code, error_message,
		signers, num_instructions, log_messages, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (signature) DO UPDATE SET
		slot = $3, block_time = $4, success = $5, error_code = $6, error_message = $7,
		signers = $8, num_instructions = $9, log_messages = $10
`

const selectTransaction = `SELECT id, signature, slot, block_time, success, COALESCE(error_code, ''),
	COALESCE(error_message, ''), signers, num_instructions, log_messages, created_at FROM transactions`

func transactionArgs(tx *storage.TransactionModel) []any {
	return []any{
		tx.ID, tx.Signature, tx.Slot, tx.BlockTime, tx.Success, tx.ErrorCode, tx.ErrorMessage,
		tx.Signers, tx.NumInstructions, tx.LogMessages, tx.CreatedAt,
	}
}

func scanTransaction(row pgx.Row) (*storage.TransactionModel, error) {
	var tx storage.TransactionModel
	err := row.Scan(
		&tx.ID, &tx.Signature, &tx.Slot, &tx.BlockTime, &tx.Success, &tx.ErrorCode, &tx.ErrorMessage,
		&tx.Signers, &tx.NumInstructions, &tx.LogMessages, &tx.CreatedAt,
	)
	return &tx, err
}

func (r *postgresTransactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	_, err := r.pool.Exec(ctx, upsertTransaction, transactionArgs(tx)...)
	return err
}

func (r *postgresTransactionRepository) SaveBatch(ctx context.Context, transactions []*storage.TransactionModel) error {
	return execBatch(ctx, r.pool, upsertTransaction, transactions, infallible(transactionArgs))
}

func (r *postgresTransactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return queryOne(ctx, r.pool, scanTransaction, selectTransaction+` WHERE signature = $1`, signature)
}

func (r *postgresTransactionRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.pool, scanTransaction, selectTransaction+` WHERE slot = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		slot, limitArg(limit), offset)
}

func (r *postgresTransactionRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.pool, scanTransaction, selectTransaction+` WHERE $1 = ANY(signers) ORDER BY slot DESC, created_at DESC LIMIT $2 OFFSET $3`,
		signer, limitArg(limit), offset)
}

func (r *postgresTransactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.pool, scanTransaction, selectTransaction+` ORDER BY slot DESC, created_at DESC LIMIT $1`,
		limitArg(limit))
}

type postgresInstructionRepository struct {
	pool *pgxpool.Pool
}

const upsertInstruction = `
	INSERT INTO instructions (id, signature, instruction_index, program_id, name, data, accounts, slot, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

const selectInstruction = `SELECT id, signature, instruction_index, program_id, name, data, accounts, slot, created_at FROM instructions`

func instructionArgs(ix *storage.InstructionModel) []any {
	return []any{ix.ID, ix.Signature, ix.InstructionIndex, ix.ProgramID, ix.Name, ix.Data, ix.Accounts, ix.Slot, ix.CreatedAt}
}

func scanInstruction(row pgx.Row) (*storage.InstructionModel, error) {
	var ix storage.InstructionModel
	err := row.Scan(&ix.ID, &ix.Signature, &ix.InstructionIndex, &ix.ProgramID, &ix.Name, &ix.Data, &ix.Accounts, &ix.Slot, &ix.CreatedAt)
	return &ix, err
}

func (r *postgresInstructionRepository) Save(ctx context.Context, instruction *storage.InstructionModel) error {
	_, err := r.pool.Exec(ctx, upsertInstruction, instructionArgs(instruction)...)
	return err
}

func (r *postgresInstructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	return execBatch(ctx, r.pool, upsertInstruction, instructions, infallible(instructionArgs))
}

func (r *postgresInstructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.pool, scanInstruction, selectInstruction+` WHERE signature = $1 ORDER BY instruction_index`,
		signature)
}

func (r *postgresInstructionRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.pool, scanInstruction, selectInstruction+` WHERE program_id = $1 ORDER BY slot DESC, signature, instruction_index LIMIT $2 OFFSET $3`,
		programID, limitArg(limit), offset)
}

func (r *postgresInstructionRepository) FindByName(ctx context.Context, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.pool, scanInstruction, selectInstruction+` WHERE name = $1 ORDER BY slot DESC, signature, instruction_index LIMIT $2 OFFSET $3`,
		name, limitArg(limit), offset)
}

type postgresEventRepository struct {
	pool *pgxpool.Pool
}

const upsertEvent = `
	INSERT INTO events (id, signature, event_index, program_id, event_name, data, slot, block_time, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

const selectEvent = `SELECT id, signature, event_index, program_id, event_name, data, slot, block_time, created_at FROM events`

func eventArgs(event *storage.EventModel) ([]any, error) {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []any{
		event.ID, event.Signature, event.EventIndex, event.ProgramID, event.EventName,
		dataJSON, event.Slot, event.BlockTime, event.CreatedAt,
	}, nil
}

func scanEvent(row pgx.Row) (*storage.EventModel, error) {
	var event storage.EventModel
	var dataJSON []byte
	if err := row.Scan(
		&event.ID, &event.Signature, &event.EventIndex, &event.ProgramID, &event.EventName,
		&dataJSON, &event.Slot, &event.BlockTime, &event.CreatedAt,
	); err != nil {
		return nil, err
	}
	data, err := decodeEventData(dataJSON)
	if err != nil {
		return nil, err
	}
	event.Data = data
	return &event, nil
}

// decodeEventData restores the integer typing EventData produced.
func decodeEventData(raw []byte) (map[string]any, error) {
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, err
	}
	return storage.EventData(loose)
}

func (r *postgresEventRepository) Save(ctx context.Context, event *storage.EventModel) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, upsertEvent, args...)
	return err
}

func (r *postgresEventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	return execBatch(ctx, r.pool, upsertEvent, events, eventArgs)
}

func (r *postgresEventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.pool, scanEvent, selectEvent+` WHERE signature = $1 ORDER BY event_index`,
		signature)
}

func (r *postgresEventRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.pool, scanEvent, selectEvent+` WHERE program_id = $1 ORDER BY slot DESC, signature, event_index LIMIT $2 OFFSET $3`,
		programID, limitArg(limit), offset)
}

func (r *postgresEventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.pool, scanEvent, selectEvent+` WHERE event_name = $1 ORDER BY slot DESC, signature, event_index LIMIT $2 OFFSET $3`,
		eventName, limitArg(limit), offset)
}

func (r *postgresEventRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.pool, scanEvent, selectEvent+` WHERE slot = $1 ORDER BY signature, event_index LIMIT $2 OFFSET $3`,
		slot, limitArg(limit), offset)
}
