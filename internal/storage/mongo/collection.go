package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collection is one journal collection decoding into T. key returns the
// filter that identifies a record for upserts.
type collection[T any] struct {
	coll *mongo.Collection
	key  func(*T) bson.M
}

func newCollection[T any](db *mongo.Database, name string, key func(*T) bson.M) collection[T] {
	return collection[T]{coll: db.Collection(name), key: key}
}

func (c collection[T]) upsert(ctx context.Context, record *T) error {
	_, err := c.coll.UpdateOne(ctx, c.key(record), bson.M{"$set": record}, options.Update().SetUpsert(true))
	return err
}

// upsertMany writes every record in one unordered bulk write.
func (c collection[T]) upsertMany(ctx context.Context, records []*T) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(records))
	for i, record := range records {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(c.key(record)).
			SetUpdate(bson.M{"$set": record}).
			SetUpsert(true)
	}
	_, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

// one returns nil, nil when nothing matches.
func (c collection[T]) one(ctx context.Context, filter bson.M) (*T, error) {
	var out T
	err := c.coll.FindOne(ctx, filter).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &out, nil
}

// page runs a sorted query. A non-positive limit returns every match.
func (c collection[T]) page(ctx context.Context, filter bson.M, sort bson.D, limit, offset int) ([]*T, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
