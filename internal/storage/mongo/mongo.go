// Package mongo stores the journal in MongoDB, one collection per record
// type.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func init() {
	storage.Register(storage.DatabaseTypeMongoDB, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		return NewMongoRepository(ctx, &cfg.MongoDB)
	})
}

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
	instructionsCollection = "instructions"
	eventsCollection       = "events"
)

func keys(fields ...string) bson.D {
	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f[0] == '-' {
			f, dir = f[1:], -1
		}
		d = append(d, bson.E{Key: f, Value: dir})
	}
	return d
}

// indexes mirrors the finder queries: an equality field, then the sort.
var indexes = map[string][]mongo.IndexModel{
	accountsCollection: {
		{Keys: keys("pubkey"), Options: options.Index().SetUnique(true)},
		{Keys: keys("owner", "-slot")},
		{Keys: keys("kind", "-slot")},
	},
	transactionsCollection: {
		{Keys: keys("signature"), Options: options.Index().SetUnique(true)},
		{Keys: keys("-slot", "-created_at")},
		{Keys: keys("signers", "-slot")},
	},
	instructionsCollection: {
		{Keys: keys("signature", "instruction_index")},
		{Keys: keys("program_id", "-slot")},
		{Keys: keys("name", "-slot")},
	},
	eventsCollection: {
		{Keys: keys("signature", "event_index")},
		{Keys: keys("program_id", "-slot")},
		{Keys: keys("event_name", "-slot")},
		{Keys: keys("slot")},
		{Keys: keys("data.pool"), Options: options.Index().SetSparse(true)},
	},
}

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database

	accounts     *mongoAccountRepository
	transactions *mongoTransactionRepository
	instructions *mongoInstructionRepository
	events       *mongoEventRepository
}

func clientOptions(cfg *config.MongoDBConfig) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetRetryWrites(true).
		SetRetryReads(true)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second)
	}
	return opts
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to index %s: %w", name, err)
		}
	}

	return &MongoRepository{
		client:       client,
		database:     db,
		accounts:     &mongoAccountRepository{newCollection(db, accountsCollection, byPubkey)},
		transactions: &mongoTransactionRepository{newCollection(db, transactionsCollection, bySignature)},
		instructions: &mongoInstructionRepository{newCollection(db, instructionsCollection, byInstructionID)},
		events:       &mongoEventRepository{newCollection(db, eventsCollection, byEventID)},
	}, nil
}

func (r *MongoRepository) Accounts() storage.AccountRepository         { return r.accounts }
func (r *MongoRepository) Transactions() storage.TransactionRepository { return r.transactions }
func (r *MongoRepository) Instructions() storage.InstructionRepository { return r.instructions }
func (r *MongoRepository) Events() storage.EventRepository             { return r.events }

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
