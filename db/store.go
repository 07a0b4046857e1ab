// Package db defines the cost record store and opens a backend by connection URI
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"aws-cost-sync/db/clickhouse"
	"aws-cost-sync/db/memory"
	"aws-cost-sync/db/mongodb"
	"aws-cost-sync/db/postgres"
	"aws-cost-sync/pkg/focus"
)

// CostStore persists normalized cost records. Implementations are safe for concurrent use.
type CostStore interface {
	// UpsertCost replaces the record with the same natural key, or inserts it
	UpsertCost(ctx context.Context, rec focus.CostRecord) error

	// ListCosts returns every stored record in storage order, without internal ids
	ListCosts(ctx context.Context) ([]focus.CostRecord, error)

	// ListDocuments returns every stored document as written, without internal ids
	ListDocuments(ctx context.Context) ([]focus.Document, error)

	// InsertCosts appends ingested records without deduplication and returns the count written
	InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config selects and configures a backend
type Config struct {
	URI              string // scheme picks the backend
	Database         string // used when the URI names no database
	Collection       string // upserted cost records
	IngestCollection string // insert-only ingestion records
}

// Open connects to the backend named by cfg.URI's scheme
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (CostStore, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid storage URI: %w", err)
	}

	logger = logger.With().Str("component", "store").Str("backend", u.Scheme).Logger()

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return mongodb.NewStore(ctx, &mongodb.Config{
			URI:              cfg.URI,
			Database:         cfg.Database,
			Collection:       cfg.Collection,
			IngestCollection: cfg.IngestCollection,
		}, logger)
	case "postgres", "postgresql":
		return postgres.NewStore(ctx, &postgres.Config{
			DSN:         cfg.URI,
			Table:       cfg.Collection,
			IngestTable: cfg.IngestCollection,
		}, logger)
	case "clickhouse":
		return clickhouse.NewStoreFromDSN(ctx, cfg.URI, &clickhouse.Config{
			Database:    cfg.Database,
			Table:       cfg.Collection,
			IngestTable: cfg.IngestCollection,
		}, logger)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}
