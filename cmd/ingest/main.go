package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/fetch"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/storage"
	"vrp-edge-lab/internal/storage/memory"
	"vrp-edge-lab/internal/storage/migrations"
	pgstore "vrp-edge-lab/internal/storage/postgres"
	"vrp-edge-lab/internal/voltracker"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	tickers := flag.String("tickers", "", "Comma-separated tickers to backfill (required)")
	asOfStr := flag.String("date", "", "Backfill anchor date YYYY-MM-DD (default: today)")
	days := flag.Int("days", 0, "Days of history to backfill (default: config backfill_days)")
	dataDir := flag.String("data-dir", "", "Directory of exported market data files (required)")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *tickers == "" {
		logger.Fatal().Msg("--tickers is required")
	}
	if *dataDir == "" {
		logger.Fatal().Msg("--data-dir is required")
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}

	asOf := time.Now().UTC()
	if *asOfStr != "" {
		asOf, err = time.Parse("2006-01-02", *asOfStr)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse --date")
		}
	}
	backfillDays := cfg.Tracker.BackfillDays
	if *days > 0 {
		backfillDays = *days
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	var snapStore storage.VolatilitySnapshotStore = memory.NewVolatilitySnapshotStore()
	if !*useMemory {
		if cfg.Postgres.DSN == "" {
			logger.Fatal().Msg("postgres dsn is required without --use-memory")
		}
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatal().Err(err).Msg("apply postgres migrations")
			}
		}
		snapStore = pgstore.NewVolatilitySnapshotStore(pool)
	}

	provider := fetch.NewResilient(fetch.NewFileProvider(*dataDir), cfg.Fetch, logger)
	tracker := voltracker.NewTracker(cfg.Tracker, snapStore, provider, logger)

	total := 0
	for _, ticker := range strings.Split(*tickers, ",") {
		ticker = strings.TrimSpace(ticker)
		if ticker == "" {
			continue
		}
		inserted, err := tracker.Backfill(ctx, ticker, asOf, backfillDays)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("backfill failed")
			continue
		}
		logger.Info().Str("ticker", ticker).Int("inserted", inserted).Msg("backfill complete")
		total += inserted
	}

	fmt.Printf("Backfilled %d snapshots through %s\n", total, asOf.Format("2006-01-02"))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}
