package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aws-cost-sync/decision/billing"
	"aws-cost-sync/internal/costexplorer"
	"aws-cost-sync/pkg/focus"
)

// ErrNoCostData is returned when a fetch yields nothing to insert
var ErrNoCostData = errors.New("no cost data found")

// CostInserter is the part of the cost store the insert-only ingestion writes through
type CostInserter interface {
	InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error)
}

// Ingester is the insert-only mode: every fetched non-zero record is appended with a
// fetched_at stamp, without natural key deduplication.
type Ingester struct {
	querier costexplorer.Querier
	store   CostInserter
	cfg     *Config
	now     func() time.Time
	logger  zerolog.Logger
}

// IngestResult tracks the result of one insert-only ingestion
type IngestResult struct {
	RunID           uuid.UUID     `json:"run_id"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	FetchedAt       time.Time     `json:"fetched_at"`
	RecordsInserted int           `json:"records_inserted"`
	RecordsSkipped  int           `json:"records_skipped"`
	Duration        time.Duration `json:"duration"`
}

// NewIngester creates an insert-only ingester. A nil cfg means DefaultConfig.
func NewIngester(querier costexplorer.Querier, store CostInserter, cfg *Config, logger zerolog.Logger) *Ingester {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ingester{
		querier: querier,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With().Str("component", "ingester").Logger(),
	}
}

// Ingest fetches the trailing window and inserts all non-zero records in one batch.
// It returns ErrNoCostData when nothing survives normalization.
func (i *Ingester) Ingest(ctx context.Context) (*IngestResult, error) {
	startTime := time.Now()
	now := i.now()
	start, end := Window(now, i.cfg.WindowDays)
	result := &IngestResult{
		RunID:     uuid.New(),
		Start:     start.Format(dateLayout),
		End:       end.Format(dateLayout),
		FetchedAt: now.UTC(),
	}
	logger := i.logger.With().Str("run_id", result.RunID.String()).Logger()

	buckets, err := i.querier.GetCostAndUsage(ctx, buildQuery(start, end, i.cfg))
	if err != nil {
		recordFailure(modeInsert, err, startTime)
		logger.Error().Err(err).Msg("Error fetching AWS cost data")
		return result, err
	}

	var batch []focus.IngestedCostRecord
	_, err = forEachRecord(buckets, func(rec focus.CostRecord) error {
		if billing.IsZeroCost(rec) {
			result.RecordsSkipped++
			return nil
		}
		batch = append(batch, focus.IngestedCostRecord{CostRecord: rec, FetchedAt: result.FetchedAt})
		return nil
	})
	if err != nil {
		recordFailure(modeInsert, err, startTime)
		logger.Error().Err(err).Msg("Error normalizing AWS cost data")
		return result, err
	}

	if len(batch) == 0 {
		recordSuccess(modeInsert, startTime)
		logger.Info().Int("records_skipped", result.RecordsSkipped).Msg("No cost data found")
		return result, ErrNoCostData
	}

	result.RecordsInserted, err = i.store.InsertCosts(ctx, batch)
	result.Duration = time.Since(startTime)
	recordRecords(modeInsert, result.RecordsInserted, result.RecordsSkipped)
	if err != nil {
		recordFailure(modeInsert, err, startTime)
		logger.Error().Err(err).Msg("Error inserting AWS cost data")
		return result, err
	}

	recordSuccess(modeInsert, startTime)
	logger.Info().
		Int("records_inserted", result.RecordsInserted).
		Dur("duration", result.Duration).
		Msg("AWS costs fetched and stored successfully")

	return result, nil
}
