// Package mongodb provides the MongoDB implementation of the cost store
package mongodb

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	costerrors "aws-cost-sync/pkg/errors"
	"aws-cost-sync/pkg/focus"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI              string
	Database         string
	Collection       string
	IngestCollection string
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		URI:              "mongodb://localhost:27017/devops-dashboard",
		Database:         "devops-dashboard",
		Collection:       "aws_costs",
		IngestCollection: "aws_cost_ingestions",
	}
}

// Store implements the cost store on two MongoDB collections
type Store struct {
	client *mongo.Client
	costs  *mongo.Collection
	ingest *mongo.Collection
	logger zerolog.Logger
}

// NewStore connects, verifies the connection and ensures the natural key index.
// Empty cfg fields take their DefaultConfig values.
func NewStore(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Store, error) {
	cfg = cfg.withDefaults()

	dbName := ResolveDatabaseName(cfg.URI, cfg.Database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, costerrors.NewStorageError("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, costerrors.NewStorageError("ping", err)
	}

	s := newStore(client, client.Database(dbName), cfg, logger)

	if err := s.EnsureIndexes(ctx); err != nil {
		// existing duplicate documents block the unique index; upserts stay keyed regardless
		logger.Warn().Err(err).Msg("could not ensure natural key index")
	}

	logger.Info().
		Str("uri", redact(cfg.URI)).
		Str("database", dbName).
		Str("collection", cfg.Collection).
		Msg("MongoDB connected")

	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database, cfg *Config, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		costs:  db.Collection(cfg.Collection),
		ingest: db.Collection(cfg.IngestCollection),
		logger: logger,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.URI == "" {
		out.URI = d.URI
	}
	if out.Database == "" {
		out.Database = d.Database
	}
	if out.Collection == "" {
		out.Collection = d.Collection
	}
	if out.IngestCollection == "" {
		out.IngestCollection = d.IngestCollection
	}
	return &out
}

// EnsureIndexes creates the unique compound index on the natural key
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.costs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "date", Value: 1},
			{Key: "service", Value: 1},
			{Key: "region", Value: 1},
			{Key: "usage_type", Value: 1},
			{Key: "operation", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("natural_key"),
	})
	if err != nil {
		return costerrors.NewStorageError("create index", err)
	}
	return nil
}

// UpsertCost sets every field of the document matching the record's natural key
func (s *Store) UpsertCost(ctx context.Context, rec focus.CostRecord) error {
	_, err := s.costs.UpdateOne(ctx,
		keyFilter(rec.Key()),
		bson.D{{Key: "$set", Value: rec}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return costerrors.NewStorageError("upsert", err)
	}
	return nil
}

// ListCosts returns all cost documents with _id excluded
func (s *Store) ListCosts(ctx context.Context) ([]focus.CostRecord, error) {
	cur, err := s.costs.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, costerrors.NewStorageError("find", err)
	}

	records := []focus.CostRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, costerrors.NewStorageError("find", err)
	}
	return records, nil
}

// ListDocuments returns every cost document as stored, _id excluded
func (s *Store) ListDocuments(ctx context.Context) ([]focus.Document, error) {
	cur, err := s.costs.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, costerrors.NewStorageError("find", err)
	}

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, costerrors.NewStorageError("find", err)
	}

	docs := make([]focus.Document, len(raw))
	for i, m := range raw {
		docs[i] = focus.Document(m)
	}
	return docs, nil
}

// InsertCosts appends ingested records to the ingestion collection
func (s *Store) InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(recs))
	for i := range recs {
		docs[i] = recs[i]
	}

	res, err := s.ingest.InsertMany(ctx, docs)
	if err != nil {
		return 0, costerrors.NewStorageError("insert many", err)
	}
	return len(res.InsertedIDs), nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return costerrors.NewStorageError("ping", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func keyFilter(k focus.NaturalKey) bson.D {
	return bson.D{
		{Key: "date", Value: k.Date},
		{Key: "service", Value: k.Service},
		{Key: "region", Value: k.Region},
		{Key: "usage_type", Value: k.UsageType},
		{Key: "operation", Value: k.Operation},
	}
}
