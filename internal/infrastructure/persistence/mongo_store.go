package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// mongoCollectionDoc holds one ledger collection: {_id: name, records: [...], updatedAt}
type mongoCollectionDoc struct {
	ID        string     `bson:"_id"`
	Records   []bson.Raw `bson:"records"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

// MongoStore persists each ledger collection as one MongoDB document
type MongoStore struct {
	client          *mongo.Client
	coll            *mongo.Collection
	useTransactions bool
	logger          *zap.Logger
	clock           shared.Clock
}

// NewMongoStore connects to MongoDB
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return NewMongoStoreWithClient(client, cfg.Database, cfg.Collection, cfg.UseTransactions, logger), nil
}

// NewMongoStoreWithClient creates a MongoStore over a connected client
func NewMongoStoreWithClient(client *mongo.Client, database, collection string, useTransactions bool, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		client:          client,
		coll:            client.Database(database).Collection(collection),
		useTransactions: useTransactions,
		logger:          logger.Named("mongo_store"),
		clock:           shared.SystemClock,
	}
}

// Load implements shared.CollectionStore
func (s *MongoStore) Load(ctx context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	var doc mongoCollectionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": collection.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return bsonToJSON(doc.Records)
}

// Save implements shared.CollectionStore
func (s *MongoStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{collection: records})
}

// SaveBatch upserts every collection of the batch, inside a transaction when enabled
func (s *MongoStore) SaveBatch(ctx context.Context, batch shared.Batch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}

	docs := make([]mongoCollectionDoc, 0, len(batch))
	now := s.clock().UTC()
	for _, c := range sortedCollections(batch) {
		records, err := jsonToBSON(batch[c])
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", c, err)
		}
		docs = append(docs, mongoCollectionDoc{ID: c.String(), Records: records, UpdatedAt: now})
	}

	if !s.useTransactions || len(docs) == 1 {
		return s.upsertAll(ctx, docs)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, s.upsertAll(sc, docs)
	})
	return err
}

func (s *MongoStore) upsertAll(ctx context.Context, docs []mongoCollectionDoc) error {
	for _, doc := range docs {
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("save collection %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Ping checks the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// jsonToBSON converts JSON documents to BSON, keeping field order
func jsonToBSON(records []json.RawMessage) ([]bson.Raw, error) {
	out := make([]bson.Raw, 0, len(records))
	for i, record := range records {
		var doc bson.D
		if err := bson.UnmarshalExtJSON(record, false, &doc); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// bsonToJSON converts BSON documents back to relaxed extended JSON, which is
// plain JSON for the strings, numbers and nested objects the ledgers store.
func bsonToJSON(records []bson.Raw) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(records))
	for i, record := range records {
		data, err := bson.MarshalExtJSON(record, false, false)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}
