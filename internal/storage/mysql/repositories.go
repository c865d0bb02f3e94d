package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"

	"github.com/lugondev/go-cash/internal/storage"
)

// limitArg maps a non-positive limit to the largest value MySQL accepts,
// which it reads as no limit.
func limitArg(limit int) int64 {
	if limit <= 0 {
		return math.MaxInt64
	}
	return int64(limit)
}

type scanner interface {
	Scan(dest ...any) error
}

func queryMany[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func queryOne[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) (*T, error) {
	item, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// execEach runs one prepared statement per item inside a single transaction,
// so a batch is journaled entirely or not at all.
func execEach[T any](ctx context.Context, db *sql.DB, query string, items []T, args func(T) ([]any, error)) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		a, err := args(item)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type mysqlAccountRepository struct {
	db *sql.DB
}

// The IF guards keep the stored row when it already has a newer version.
const upsertAccount = `
	INSERT INTO accounts (id, pubkey, owner, kind, data, version, slot, updated_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		owner = IF(VALUES(version) >= version, VALUES(owner), owner),
		kind = IF(VALUES(version) >= version, VALUES(kind), kind),
		data = IF(VALUES(version) >= version, VALUES(data), data),
		slot = IF(VALUES(version) >= version, VALUES(slot), slot),
		updated_at = IF(VALUES(version) >= version, VALUES(updated_at), updated_at),
		version = GREATEST(version, VALUES(version))
`

const selectAccount = `SELECT id, pubkey, owner, kind, data, version, slot, updated_at, created_at FROM accounts`

func accountArgs(a *storage.AccountModel) []any {
	return []any{a.ID, a.Pubkey, a.Owner, a.Kind, a.Data, a.Version, a.Slot, a.UpdatedAt, a.CreatedAt}
}

func scanAccount(row scanner) (*storage.AccountModel, error) {
	var a storage.AccountModel
	err := row.Scan(&a.ID, &a.Pubkey, &a.Owner, &a.Kind, &a.Data, &a.Version, &a.Slot, &a.UpdatedAt, &a.CreatedAt)
	return &a, err
}

func (r *mysqlAccountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	_, err := r.db.ExecContext(ctx, upsertAccount, accountArgs(account)...)
	return err
}

func (r *mysqlAccountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	return execEach(ctx, r.db, upsertAccount, accounts, func(a *storage.AccountModel) ([]any, error) {
		return accountArgs(a), nil
	})
}

func (r *mysqlAccountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return queryOne(ctx, r.db, selectAccount+` WHERE pubkey = ?`, scanAccount, pubkey)
}

func (r *mysqlAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return queryMany(ctx, r.db, selectAccount+` WHERE owner = ? ORDER BY slot DESC, pubkey LIMIT ? OFFSET ?`,
		scanAccount, owner, limitArg(limit), offset)
}

func (r *mysqlAccountRepository) FindByKind(ctx context.Context, kind string, limit int, offset int) ([]*storage.AccountModel, error) {
	return queryMany(ctx, r.db, selectAccount+` WHERE kind = ? ORDER BY slot DESC, pubkey LIMIT ? OFFSET ?`,
		scanAccount, kind, limitArg(limit), offset)
}

type mysqlTransactionRepository struct {
	db *sql.DB
}

const upsertTransaction = `
	INSERT INTO transactions (id, signature, slot, block_time, success, error_code, error_message,
		signers, num_instructions, log_messages, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		slot = VALUES(slot), block_time = VALUES(block_time), success = VALUES(success),
		error_code = VALUES(error_code), error_message = VALUES(error_message),
		signers = VALUES(signers), num_instructions = VALUES(num_instructions),
		log_messages = VALUES(log_messages)
`

const selectTransaction = `SELECT id, signature, slot, block_time, success, COALESCE(error_code, ''),
	COALESCE(error_message, ''), signers, num_instructions, log_messages, created_at FROM transactions`

func transactionArgs(tx *storage.TransactionModel) ([]any, error) {
	signersJSON, err := json.Marshal(tx.Signers)
	if err != nil {
		return nil, err
	}

	var logMessagesJSON []byte
	if tx.LogMessages != nil {
		logMessagesJSON, err = json.Marshal(tx.LogMessages)
		if err != nil {
			return nil, err
		}
	}

	return []any{
		tx.ID, tx.Signature, tx.Slot, tx.BlockTime, tx.Success, tx.ErrorCode, tx.ErrorMessage,
		signersJSON, tx.NumInstructions, logMessagesJSON, tx.CreatedAt,
	}, nil
}

func scanTransaction(row scanner) (*storage.TransactionModel, error) {
	var tx storage.TransactionModel
	var signersJSON, logMessagesJSON []byte
	if err := row.Scan(
		&tx.ID, &tx.Signature, &tx.Slot, &tx.BlockTime, &tx.Success, &tx.ErrorCode, &tx.ErrorMessage,
		&signersJSON, &tx.NumInstructions, &logMessagesJSON, &tx.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(signersJSON, &tx.Signers); err != nil {
		return nil, err
	}
	if len(logMessagesJSON) > 0 {
		if err := json.Unmarshal(logMessagesJSON, &tx.LogMessages); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

func (r *mysqlTransactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	args, err := transactionArgs(tx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertTransaction, args...)
	return err
}

func (r *mysqlTransactionRepository) SaveBatch(ctx context.Context, transactions []*storage.TransactionModel) error {
	return execEach(ctx, r.db, upsertTransaction, transactions, transactionArgs)
}

func (r *mysqlTransactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return queryOne(ctx, r.db, selectTransaction+` WHERE signature = ?`, scanTransaction, signature)
}

func (r *mysqlTransactionRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.db, selectTransaction+` WHERE slot = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		scanTransaction, slot, limitArg(limit), offset)
}

func (r *mysqlTransactionRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.TransactionModel, error) {
	signerJSON, err := json.Marshal(signer)
	if err != nil {
		return nil, err
	}
	return queryMany(ctx, r.db, selectTransaction+` WHERE JSON_CONTAINS(signers, ?) ORDER BY slot DESC, created_at DESC LIMIT ? OFFSET ?`,
		scanTransaction, string(signerJSON), limitArg(limit), offset)
}

func (r *mysqlTransactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.db, selectTransaction+` ORDER BY slot DESC, created_at DESC LIMIT ?`,
		scanTransaction, limitArg(limit))
}

type mysqlInstructionRepository struct {
	db *sql.DB
}

const insertInstruction = `
	INSERT IGNORE INTO instructions (id, signature, instruction_index, program_id, name, data, accounts, slot, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectInstruction = `SELECT id, signature, instruction_index, program_id, name, data, accounts, slot, created_at FROM instructions`

func instructionArgs(ix *storage.InstructionModel) ([]any, error) {
	accountsJSON, err := json.Marshal(ix.Accounts)
	if err != nil {
		return nil, err
	}
	return []any{ix.ID, ix.Signature, ix.InstructionIndex, ix.ProgramID, ix.Name, ix.Data, accountsJSON, ix.Slot, ix.CreatedAt}, nil
}

func scanInstruction(row scanner) (*storage.InstructionModel, error) {
	var ix storage.InstructionModel
	var accountsJSON []byte
	if err := row.Scan(&ix.ID, &ix.Signature, &ix.InstructionIndex, &ix.ProgramID, &ix.Name, &ix.Data, &accountsJSON, &ix.Slot, &ix.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(accountsJSON, &ix.Accounts); err != nil {
		return nil, err
	}
	return &ix, nil
}

func (r *mysqlInstructionRepository) Save(ctx context.Context, instruction *storage.InstructionModel) error {
	args, err := instructionArgs(instruction)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertInstruction, args...)
	return err
}

func (r *mysqlInstructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	return execEach(ctx, r.db, insertInstruction, instructions, instructionArgs)
}

func (r *mysqlInstructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.db, selectInstruction+` WHERE signature = ? ORDER BY instruction_index`, scanInstruction, signature)
}

func (r *mysqlInstructionRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.db, selectInstruction+` WHERE program_id = ? ORDER BY slot DESC, signature, instruction_index LIMIT ? OFFSET ?`,
		scanInstruction, programID, limitArg(limit), offset)
}

func (r *mysqlInstructionRepository) FindByName(ctx context.Context, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.db, selectInstruction+` WHERE name = ? ORDER BY slot DESC, signature, instruction_index LIMIT ? OFFSET ?`,
		scanInstruction, name, limitArg(limit), offset)
}

type mysqlEventRepository struct {
	db *sql.DB
}

const insertEvent = `
	INSERT IGNORE INTO events (id, signature, event_index, program_id, event_name, data, slot, block_time, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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

func scanEvent(row scanner) (*storage.EventModel, error) {
	var event storage.EventModel
	var dataJSON []byte
	if err := row.Scan(
		&event.ID, &event.Signature, &event.EventIndex, &event.ProgramID, &event.EventName,
		&dataJSON, &event.Slot, &event.BlockTime, &event.CreatedAt,
	); err != nil {
		return nil, err
	}

	var loose map[string]any
	if err := json.Unmarshal(dataJSON, &loose); err != nil {
		return nil, err
	}
	data, err := storage.EventData(loose)
	if err != nil {
		return nil, err
	}
	event.Data = data
	return &event, nil
}

func (r *mysqlEventRepository) Save(ctx context.Context, event *storage.EventModel) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertEvent, args...)
	return err
}

func (r *mysqlEventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	return execEach(ctx, r.db, insertEvent, events, eventArgs)
}

func (r *mysqlEventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, selectEvent+` WHERE signature = ? ORDER BY event_index`, scanEvent, signature)
}

func (r *mysqlEventRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, selectEvent+` WHERE program_id = ? ORDER BY slot DESC, signature, event_index LIMIT ? OFFSET ?`,
		scanEvent, programID, limitArg(limit), offset)
}

func (r *mysqlEventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, selectEvent+` WHERE event_name = ? ORDER BY slot DESC, signature, event_index LIMIT ? OFFSET ?`,
		scanEvent, eventName, limitArg(limit), offset)
}

func (r *mysqlEventRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, selectEvent+` WHERE slot = ? ORDER BY signature, event_index LIMIT ? OFFSET ?`,
		scanEvent, slot, limitArg(limit), offset)
}
