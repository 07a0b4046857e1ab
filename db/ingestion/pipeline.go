// Package ingestion fetches cost data from the billing API and writes it to the cost store
package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aws-cost-sync/decision/billing"
	"aws-cost-sync/decision/billing/mappers/aws"
	"aws-cost-sync/internal/costexplorer"
	"aws-cost-sync/pkg/focus"
)

const dateLayout = "2006-01-02"

// CostWriter is the part of the cost store the pipeline writes through
type CostWriter interface {
	UpsertCost(ctx context.Context, rec focus.CostRecord) error
}

// Config controls the query each run issues
type Config struct {
	WindowDays    int      // trailing days re-queried every run
	ServiceFilter []string // raw SERVICE values; empty means all services
}

// DefaultConfig returns the trailing-week, unfiltered configuration
func DefaultConfig() *Config {
	return &Config{WindowDays: 7}
}

// LegacyConfig is the EC2-only deployment profile: trailing week, EC2 compute only
func LegacyConfig() *Config {
	return &Config{WindowDays: 7, ServiceFilter: []string{aws.EC2Compute}}
}

// Pipeline is the fetch-and-store run: query, normalize, drop zero cost, upsert by natural key
type Pipeline struct {
	querier costexplorer.Querier
	store   CostWriter
	cfg     *Config
	now     func() time.Time
	logger  zerolog.Logger
}

// RunResult tracks the result of one pipeline run
type RunResult struct {
	RunID          uuid.UUID     `json:"run_id"`
	Start          string        `json:"start"`
	End            string        `json:"end"`
	Buckets        int           `json:"buckets"`
	Groups         int           `json:"groups"`
	RecordsWritten int           `json:"records_written"`
	RecordsSkipped int           `json:"records_skipped"`
	Duration       time.Duration `json:"duration"`
}

// NewPipeline creates a pipeline. A nil cfg means DefaultConfig.
func NewPipeline(querier costexplorer.Querier, store CostWriter, cfg *Config, logger zerolog.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		querier: querier,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run queries the trailing window once and upserts every non-zero record.
// Records written before a failure stay written; no run-wide transaction exists.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	start, end := Window(p.now(), p.cfg.WindowDays)
	result := &RunResult{
		RunID: uuid.New(),
		Start: start.Format(dateLayout),
		End:   end.Format(dateLayout),
	}
	logger := p.logger.With().Str("run_id", result.RunID.String()).Logger()

	logger.Info().Str("start", result.Start).Str("end", result.End).Msg("Fetching AWS costs")

	buckets, err := p.querier.GetCostAndUsage(ctx, buildQuery(start, end, p.cfg))
	if err != nil {
		result.Duration = time.Since(startTime)
		recordFailure(modeUpsert, err, startTime)
		logger.Error().Err(err).Msg("Error fetching AWS cost data")
		return result, err
	}
	result.Buckets = len(buckets)

	result.Groups, err = forEachRecord(buckets, func(rec focus.CostRecord) error {
		if billing.IsZeroCost(rec) {
			result.RecordsSkipped++
			return nil
		}
		if err := p.store.UpsertCost(ctx, rec); err != nil {
			return err
		}
		result.RecordsWritten++
		return nil
	})
	result.Duration = time.Since(startTime)
	recordRecords(modeUpsert, result.RecordsWritten, result.RecordsSkipped)

	if err != nil {
		recordFailure(modeUpsert, err, startTime)
		logger.Error().
			Err(err).
			Int("records_written", result.RecordsWritten).
			Msg("Error storing AWS cost data")
		return result, err
	}

	recordSuccess(modeUpsert, startTime)
	logger.Info().
		Int("records_written", result.RecordsWritten).
		Int("records_skipped", result.RecordsSkipped).
		Dur("duration", result.Duration).
		Msgf("Stored %d new/updated records.", result.RecordsWritten)

	return result, nil
}

// Window returns the [start, end) dates of the trailing window ending today (UTC)
func Window(now time.Time, days int) (start, end time.Time) {
	y, m, d := now.UTC().Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, 0, -days)
	return start, end
}

func buildQuery(start, end time.Time, cfg *Config) costexplorer.Query {
	q := costexplorer.Query{
		Start:       start,
		End:         end,
		Granularity: costexplorer.GranularityDaily,
		Metrics:     billing.Metrics,
		GroupBy:     billing.GroupBy,
	}
	if len(cfg.ServiceFilter) > 0 {
		q.Filter = &costexplorer.DimensionFilter{
			Dimension: billing.DimensionService,
			Values:    cfg.ServiceFilter,
		}
	}
	return q
}

// forEachRecord normalizes every group of every bucket in order and hands it to fn.
// It stops at the first normalization or fn error and returns the number of groups seen.
func forEachRecord(buckets []costexplorer.ResultByTime, fn func(focus.CostRecord) error) (int, error) {
	groups := 0
	for _, bucket := range buckets {
		for _, group := range bucket.Groups {
			groups++
			rec, err := billing.Normalize(toRaw(bucket.Start, group))
			if err != nil {
				return groups, err
			}
			if err := fn(rec); err != nil {
				return groups, err
			}
		}
	}
	return groups, nil
}

func toRaw(date string, g costexplorer.Group) billing.RawGroupingResult {
	metrics := make(map[string]string, len(g.Metrics))
	for name, mv := range g.Metrics {
		metrics[name] = mv.Amount
	}
	return billing.RawGroupingResult{
		Date:      date,
		GroupKeys: g.Keys,
		Metrics:   metrics,
	}
}
