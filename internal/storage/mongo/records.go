package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/lugondev/go-cash/internal/storage"
)

// Newest slot first; within a transaction, submission order.
var (
	transactionSort = keys("-slot", "-created_at")
	instructionSort = keys("-slot", "signature", "instruction_index")
	eventSort       = keys("-slot", "signature", "event_index")
)

func bySignature(tx *storage.TransactionModel) bson.M { return bson.M{"signature": tx.Signature} }

// Instructions and events are keyed on their deterministic model IDs.
func byInstructionID(ix *storage.InstructionModel) bson.M { return bson.M{"_id": ix.ID} }
func byEventID(ev *storage.EventModel) bson.M            { return bson.M{"_id": ev.ID} }

type mongoTransactionRepository struct {
	collection[storage.TransactionModel]
}

func (r *mongoTransactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	return r.upsert(ctx, tx)
}

func (r *mongoTransactionRepository) SaveBatch(ctx context.Context, txs []*storage.TransactionModel) error {
	return r.upsertMany(ctx, txs)
}

func (r *mongoTransactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return r.one(ctx, bson.M{"signature": signature})
}

func (r *mongoTransactionRepository) FindBySlot(ctx context.Context, slot uint64, limit, offset int) ([]*storage.TransactionModel, error) {
	return r.page(ctx, bson.M{"slot": slot}, transactionSort, limit, offset)
}

func (r *mongoTransactionRepository) FindBySigner(ctx context.Context, signer string, limit, offset int) ([]*storage.TransactionModel, error) {
	return r.page(ctx, bson.M{"signers": signer}, transactionSort, limit, offset)
}

func (r *mongoTransactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return r.page(ctx, bson.M{}, transactionSort, limit, 0)
}

type mongoInstructionRepository struct {
	collection[storage.InstructionModel]
}

func (r *mongoInstructionRepository) Save(ctx context.Context, ix *storage.InstructionModel) error {
	return r.upsert(ctx, ix)
}

func (r *mongoInstructionRepository) SaveBatch(ctx context.Context, ixs []*storage.InstructionModel) error {
	return r.upsertMany(ctx, ixs)
}

func (r *mongoInstructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	return r.page(ctx, bson.M{"signature": signature}, keys("instruction_index"), 0, 0)
}

func (r *mongoInstructionRepository) FindByProgramID(ctx context.Context, programID string, limit, offset int) ([]*storage.InstructionModel, error) {
	return r.page(ctx, bson.M{"program_id": programID}, instructionSort, limit, offset)
}

func (r *mongoInstructionRepository) FindByName(ctx context.Context, name string, limit, offset int) ([]*storage.InstructionModel, error) {
	return r.page(ctx, bson.M{"name": name}, instructionSort, limit, offset)
}

type mongoEventRepository struct {
	collection[storage.EventModel]
}

func (r *mongoEventRepository) Save(ctx context.Context, event *storage.EventModel) error {
	return r.upsert(ctx, event)
}

func (r *mongoEventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	return r.upsertMany(ctx, events)
}

func (r *mongoEventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return r.page(ctx, bson.M{"signature": signature}, keys("event_index"), 0, 0)
}

func (r *mongoEventRepository) FindByProgramID(ctx context.Context, programID string, limit, offset int) ([]*storage.EventModel, error) {
	return r.page(ctx, bson.M{"program_id": programID}, eventSort, limit, offset)
}

func (r *mongoEventRepository) FindByEventName(ctx context.Context, name string, limit, offset int) ([]*storage.EventModel, error) {
	return r.page(ctx, bson.M{"event_name": name}, eventSort, limit, offset)
}

func (r *mongoEventRepository) FindBySlot(ctx context.Context, slot uint64, limit, offset int) ([]*storage.EventModel, error) {
	return r.page(ctx, bson.M{"slot": slot}, eventSort, limit, offset)
}
