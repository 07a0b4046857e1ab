// costsync pulls AWS Cost Explorer data into the cost store on a schedule
// and serves the stored records over HTTP.
//
// Usage:
//
//	costsync serve [--run-on-start]
//	costsync fetch
//	costsync ingest
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"aws-cost-sync/api"
	"aws-cost-sync/db"
	"aws-cost-sync/db/ingestion"
	"aws-cost-sync/internal/costexplorer"
	"aws-cost-sync/internal/scheduler"
	"aws-cost-sync/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// a missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	d := platform.DefaultConfig()

	app := &cli.App{
		Name:    "costsync",
		Usage:   "Sync AWS Cost Explorer data into a document store and serve it",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   d.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "env",
				Value:   d.Env,
				Usage:   "Runtime environment; development enables console logs",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "mongo-uri",
				Value:   d.MongoURI,
				Usage:   "Storage URI (mongodb://, mongodb+srv://, postgres://, clickhouse://, memory://)",
				EnvVars: []string{"MONGO_URI"},
			},
			&cli.StringFlag{
				Name:    "db-name",
				Value:   d.DBName,
				Usage:   "Database used when the URI names none",
				EnvVars: []string{"DB_NAME"},
			},
			&cli.StringFlag{
				Name:    "collection",
				Value:   d.CollectionName,
				Usage:   "Collection or table for upserted cost records",
				EnvVars: []string{"COLLECTION_NAME"},
			},
			&cli.StringFlag{
				Name:    "ingest-collection",
				Value:   d.IngestCollectionName,
				Usage:   "Collection or table for insert-only ingestions",
				EnvVars: []string{"INGEST_COLLECTION_NAME"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Value:   d.AWSRegion,
				Usage:   "AWS region for the Cost Explorer client",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "aws-access-key-id",
				Usage:   "Static AWS access key; the default credential chain is used when empty",
				EnvVars: []string{"AWS_ACCESS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "aws-secret-access-key",
				Usage:   "Static AWS secret key",
				EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
			},
			&cli.StringFlag{
				Name:    "aws-session-token",
				Usage:   "Optional AWS session token",
				EnvVars: []string{"AWS_SESSION_TOKEN"},
			},
			&cli.IntFlag{
				Name:    "window-days",
				Value:   d.WindowDays,
				Usage:   "Trailing days queried on every run",
				EnvVars: []string{"WINDOW_DAYS"},
			},
			&cli.StringSliceFlag{
				Name:    "service-filter",
				Usage:   "Restrict the query to these SERVICE values (repeat or comma-separate)",
				EnvVars: []string{"SERVICE_FILTER"},
			},
			&cli.DurationFlag{
				Name:    "query-timeout",
				Value:   d.QueryTimeout,
				Usage:   "Timeout for one Cost Explorer query, all pages included",
				EnvVars: []string{"QUERY_TIMEOUT"},
			},
		},

		Commands: []*cli.Command{
			serveCommand(d),
			fetchCommand(),
			ingestCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand(d *platform.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduled fetch and the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   d.Port,
				Usage:   "HTTP port",
				EnvVars: []string{"PORT"},
			},
			&cli.DurationFlag{
				Name:    "interval",
				Value:   d.FetchInterval,
				Usage:   "Time between scheduled fetches",
				EnvVars: []string{"FETCH_INTERVAL"},
			},
			&cli.BoolFlag{
				Name:    "run-on-start",
				Usage:   "Fetch once immediately instead of waiting a full interval",
				EnvVars: []string{"RUN_ON_START"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := configFromFlags(c)
	logger := platform.InitLogger(cfg.LogLevel, cfg.Env)

	store, querier, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	ingestCfg := &ingestion.Config{WindowDays: cfg.WindowDays, ServiceFilter: cfg.ServiceFilter}
	pipeline := ingestion.NewPipeline(querier, store, ingestCfg, logger)
	ingester := ingestion.NewIngester(querier, store, ingestCfg, logger)

	sched, err := scheduler.New(pipeline, scheduler.Config{
		Interval:   cfg.FetchInterval,
		RunOnStart: cfg.RunOnStart,
	}, logger)
	if err != nil {
		return err
	}

	serverCfg := api.DefaultConfig()
	serverCfg.Port = cfg.Port
	serverCfg.Version = version
	server := api.NewServer(store, ingester, serverCfg, logger)

	sched.Start()
	logger.Info().Time("next_run", sched.Next()).Msg("Cost fetch scheduled")

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	var serveErr error
	select {
	case serveErr = <-errChan:
		logger.Error().Err(serveErr).Msg("API server stopped")
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Scheduler did not stop in time")
	}

	return serveErr
}

// =============================================================================
// ONE-SHOT COMMANDS
// =============================================================================

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch the trailing window once and upsert it",
		Action: func(c *cli.Context) error {
			cfg := configFromFlags(c)
			logger := platform.InitLogger(cfg.LogLevel, cfg.Env)

			store, querier, err := openDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, logger)

			pipeline := ingestion.NewPipeline(querier, store, &ingestion.Config{
				WindowDays:    cfg.WindowDays,
				ServiceFilter: cfg.ServiceFilter,
			}, logger)

			result, err := pipeline.Run(c.Context)
			if err != nil {
				return fmt.Errorf("cost fetch failed: %w", err)
			}
			return printJSON(result)
		},
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch the trailing window once and append it with a fetch timestamp",
		Action: func(c *cli.Context) error {
			cfg := configFromFlags(c)
			logger := platform.InitLogger(cfg.LogLevel, cfg.Env)

			store, querier, err := openDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, logger)

			ingester := ingestion.NewIngester(querier, store, &ingestion.Config{
				WindowDays:    cfg.WindowDays,
				ServiceFilter: cfg.ServiceFilter,
			}, logger)

			result, err := ingester.Ingest(c.Context)
			if errors.Is(err, ingestion.ErrNoCostData) {
				fmt.Fprintln(os.Stderr, "No cost data found")
				return nil
			}
			if err != nil {
				return fmt.Errorf("cost ingestion failed: %w", err)
			}
			return printJSON(result)
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// configFromFlags overlays the resolved flag values on the environment configuration
func configFromFlags(c *cli.Context) *platform.Config {
	cfg := platform.LoadConfig()

	cfg.LogLevel = c.String("log-level")
	cfg.Env = c.String("env")
	cfg.MongoURI = c.String("mongo-uri")
	cfg.DBName = c.String("db-name")
	cfg.CollectionName = c.String("collection")
	cfg.IngestCollectionName = c.String("ingest-collection")
	cfg.AWSRegion = c.String("aws-region")
	cfg.AWSAccessKeyID = c.String("aws-access-key-id")
	cfg.AWSSecretAccessKey = c.String("aws-secret-access-key")
	cfg.AWSSessionToken = c.String("aws-session-token")
	cfg.WindowDays = c.Int("window-days")
	cfg.QueryTimeout = c.Duration("query-timeout")

	var filter []string
	for _, v := range c.StringSlice("service-filter") {
		filter = append(filter, platform.SplitList(v)...)
	}
	cfg.ServiceFilter = filter

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("interval") {
		cfg.FetchInterval = c.Duration("interval")
	}
	cfg.RunOnStart = c.Bool("run-on-start")

	return cfg
}

func openDeps(ctx context.Context, cfg *platform.Config, logger zerolog.Logger) (db.CostStore, *costexplorer.Client, error) {
	if cfg.WindowDays <= 0 {
		return nil, nil, fmt.Errorf("window-days must be positive, got %d", cfg.WindowDays)
	}

	store, err := db.Open(ctx, db.Config{
		URI:              cfg.MongoURI,
		Database:         cfg.DBName,
		Collection:       cfg.CollectionName,
		IngestCollection: cfg.IngestCollectionName,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cost store: %w", err)
	}

	querier, err := costexplorer.New(ctx, costexplorer.Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Timeout:         cfg.QueryTimeout,
	}, logger)
	if err != nil {
		closeStore(store, logger)
		return nil, nil, err
	}

	return store, querier, nil
}

func closeStore(store db.CostStore, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to close cost store")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
