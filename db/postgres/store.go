// Package postgres provides the PostgreSQL implementation of the cost store
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	costerrors "aws-cost-sync/pkg/errors"
	"aws-cost-sync/pkg/focus"
)

// Config holds PostgreSQL configuration
type Config struct {
	DSN         string
	Table       string
	IngestTable string
}

// Store implements the cost store on two PostgreSQL tables
type Store struct {
	db          *sql.DB
	table       string // quoted
	ingestTable string // unquoted, for COPY
	logger      zerolog.Logger
}

// NewStore opens the database and creates the tables when missing
func NewStore(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, costerrors.NewStorageError("connect", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, costerrors.NewStorageError("ping", err)
	}

	s := newStore(db, cfg, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("table", cfg.Table).Msg("PostgreSQL connected")
	return s, nil
}

func newStore(db *sql.DB, cfg *Config, logger zerolog.Logger) *Store {
	return &Store{
		db:          db,
		table:       pq.QuoteIdentifier(cfg.Table),
		ingestTable: cfg.IngestTable,
		logger:      logger,
	}
}

// Migrate creates the cost and ingestion tables
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			date           TEXT NOT NULL,
			service        TEXT NOT NULL,
			region         TEXT NOT NULL,
			usage_type     TEXT NOT NULL,
			operation      TEXT NOT NULL,
			amortized_cost DOUBLE PRECISION NOT NULL,
			blended_cost   DOUBLE PRECISION NOT NULL,
			unblended_cost DOUBLE PRECISION NOT NULL,
			usage_quantity DOUBLE PRECISION NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (date, service, region, usage_type, operation)
		)`, s.table),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id             BIGSERIAL PRIMARY KEY,
			date           TEXT NOT NULL,
			service        TEXT NOT NULL,
			region         TEXT NOT NULL,
			usage_type     TEXT NOT NULL,
			operation      TEXT NOT NULL,
			amortized_cost DOUBLE PRECISION NOT NULL,
			blended_cost   DOUBLE PRECISION NOT NULL,
			unblended_cost DOUBLE PRECISION NOT NULL,
			usage_quantity DOUBLE PRECISION NOT NULL,
			fetched_at     TIMESTAMPTZ NOT NULL
		)`, pq.QuoteIdentifier(s.ingestTable)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return costerrors.NewStorageError("migrate", err)
		}
	}
	return nil
}

// UpsertCost inserts the record or overwrites the non-key columns of the existing row
func (s *Store) UpsertCost(ctx context.Context, rec focus.CostRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			date, service, region, usage_type, operation,
			amortized_cost, blended_cost, unblended_cost, usage_quantity, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (date, service, region, usage_type, operation) DO UPDATE SET
			amortized_cost = EXCLUDED.amortized_cost,
			blended_cost   = EXCLUDED.blended_cost,
			unblended_cost = EXCLUDED.unblended_cost,
			usage_quantity = EXCLUDED.usage_quantity,
			updated_at     = EXCLUDED.updated_at
	`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		rec.Date, rec.Service, rec.Region, rec.UsageType, rec.Operation,
		rec.AmortizedCost, rec.BlendedCost, rec.UnblendedCost, rec.UsageQuantity,
	)
	if err != nil {
		return costerrors.NewStorageError("upsert", err)
	}
	return nil
}

// ListCosts returns every row in heap order
func (s *Store) ListCosts(ctx context.Context) ([]focus.CostRecord, error) {
	query := fmt.Sprintf(`
		SELECT date, service, region, usage_type, operation,
			   amortized_cost, blended_cost, unblended_cost, usage_quantity
		FROM %s
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, costerrors.NewStorageError("list", err)
	}
	defer rows.Close()

	records := []focus.CostRecord{}
	for rows.Next() {
		var r focus.CostRecord
		if err := rows.Scan(
			&r.Date, &r.Service, &r.Region, &r.UsageType, &r.Operation,
			&r.AmortizedCost, &r.BlendedCost, &r.UnblendedCost, &r.UsageQuantity,
		); err != nil {
			return nil, costerrors.NewStorageError("list", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, costerrors.NewStorageError("list", err)
	}
	return records, nil
}

// ListDocuments serves rows as documents; the table schema is the whole document
func (s *Store) ListDocuments(ctx context.Context) ([]focus.Document, error) {
	recs, err := s.ListCosts(ctx)
	if err != nil {
		return nil, err
	}
	return focus.Documents(recs), nil
}

// InsertCosts copies ingested records in one transaction
func (s *Store) InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, costerrors.NewStorageError("insert many", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.ingestTable,
		"date", "service", "region", "usage_type", "operation",
		"amortized_cost", "blended_cost", "unblended_cost", "usage_quantity", "fetched_at",
	))
	if err != nil {
		return 0, costerrors.NewStorageError("insert many", err)
	}

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Service, r.Region, r.UsageType, r.Operation,
			r.AmortizedCost, r.BlendedCost, r.UnblendedCost, r.UsageQuantity, r.FetchedAt,
		); err != nil {
			stmt.Close()
			return 0, costerrors.NewStorageError("insert many", err)
		}
	}
	// flush buffered COPY data
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, costerrors.NewStorageError("insert many", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, costerrors.NewStorageError("insert many", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, costerrors.NewStorageError("insert many", err)
	}
	return len(recs), nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return costerrors.NewStorageError("ping", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}
