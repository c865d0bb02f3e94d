package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/go-cash/internal/storage"
)

var accountSort = keys("-slot", "pubkey")

// byPubkey matches the stored account only while it is not newer than the
// incoming write. A newer stored version makes the upsert collide on the
// unique pubkey index, and the stale write is dropped.
func byPubkey(a *storage.AccountModel) bson.M {
	return bson.M{"pubkey": a.Pubkey, "version": bson.M{"$lte": a.Version}}
}

type mongoAccountRepository struct {
	collection[storage.AccountModel]
}

func (r *mongoAccountRepository) Save(ctx context.Context, a *storage.AccountModel) error {
	update := bson.M{
		"$set": bson.M{
			"pubkey":     a.Pubkey,
			"owner":      a.Owner,
			"kind":       a.Kind,
			"data":       a.Data,
			"version":    a.Version,
			"slot":       a.Slot,
			"updated_at": a.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": a.ID, "created_at": a.CreatedAt},
	}
	_, err := r.coll.UpdateOne(ctx, r.key(a), update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// SaveBatch saves one at a time so each stale write can be told apart from
// a real failure.
func (r *mongoAccountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	for _, a := range accounts {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *mongoAccountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return r.one(ctx, bson.M{"pubkey": pubkey})
}

func (r *mongoAccountRepository) FindByOwner(ctx context.Context, owner string, limit, offset int) ([]*storage.AccountModel, error) {
	return r.page(ctx, bson.M{"owner": owner}, accountSort, limit, offset)
}

func (r *mongoAccountRepository) FindByKind(ctx context.Context, kind string, limit, offset int) ([]*storage.AccountModel, error) {
	return r.page(ctx, bson.M{"kind": kind}, accountSort, limit, offset)
}
