// Package scheduler runs the cost pipeline on a fixed interval
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"aws-cost-sync/db/ingestion"
)

// ErrRunInProgress is returned by RunNow when another run holds the lock
var ErrRunInProgress = errors.New("a cost fetch is already running")

// Runner is one pipeline pass
type Runner interface {
	Run(ctx context.Context) (*ingestion.RunResult, error)
}

// Config for the scheduler
type Config struct {
	Interval   time.Duration
	RunOnStart bool
}

// DefaultConfig returns a daily schedule with no immediate run
func DefaultConfig() Config {
	return Config{Interval: 24 * time.Hour}
}

// Scheduler owns the recurring job. Runs are serialized: a tick that arrives while a run
// is in flight is dropped.
type Scheduler struct {
	runner Runner
	cfg    Config
	cron   *cron.Cron
	logger zerolog.Logger

	mu     sync.Mutex // held for the duration of a run
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. The first scheduled run happens one interval after Start.
func New(runner Runner, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid fetch interval %s", cfg.Interval)
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	s.cron.Schedule(cron.Every(cfg.Interval), cron.FuncJob(s.tick))

	return s, nil
}

// Start begins the schedule and, if configured, kicks off an immediate run
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("Scheduler started")

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.RunNow(s.ctx); err != nil {
				s.logger.Error().Err(err).Msg("Initial cost fetch failed")
			}
		}()
	}
}

// Stop halts the schedule, cancels any in-flight run and waits for it to return or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the pipeline once on the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context) (*ingestion.RunResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	return s.runner.Run(ctx)
}

// Next returns the time of the next scheduled run, zero before Start
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	result, err := s.RunNow(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn().Msg("Skipping scheduled cost fetch, previous run still in progress")
	case err != nil:
		s.logger.Error().Err(err).Msg("Scheduled cost fetch failed")
	default:
		s.logger.Debug().
			Str("run_id", result.RunID.String()).
			Int("records_written", result.RecordsWritten).
			Msg("Scheduled cost fetch finished")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
