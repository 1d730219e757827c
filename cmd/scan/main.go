package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vrp-edge-lab/internal/cache"
	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/evaluator"
	"vrp-edge-lab/internal/fetch"
	"vrp-edge-lab/internal/liquidity"
	"vrp-edge-lab/internal/metrics"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/scoring"
	"vrp-edge-lab/internal/sizing"
	"vrp-edge-lab/internal/storage"
	"vrp-edge-lab/internal/storage/memory"
	"vrp-edge-lab/internal/storage/migrations"
	pgstore "vrp-edge-lab/internal/storage/postgres"
	"vrp-edge-lab/internal/voltracker"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	tickers := flag.String("tickers", "", "Comma-separated tickers to evaluate (required)")
	asOfStr := flag.String("date", "", "Evaluation date YYYY-MM-DD (default today)")
	dataDir := flag.String("data-dir", "", "Directory with exported market data JSON (required)")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")

	bankroll := flag.Float64("bankroll", 0, "Bankroll for position sizing output (0 disables sizing)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (optional)")

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
			logger.Fatal().Err(err).Msg("invalid --date, want YYYY-MM-DD")
		}
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

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var cacheStore storage.CacheEntryStore = memory.NewCacheEntryStore()
	var budgetStore storage.BudgetStore = memory.NewBudgetStore()
	var snapStore storage.VolatilitySnapshotStore = memory.NewVolatilitySnapshotStore()

	if !*useMemory {
		if cfg.Postgres.DSN == "" {
			logger.Fatal().Msg("postgres dsn is required when not using --use-memory")
		}
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatal().Err(err).Msg("apply migrations")
			}
		}

		cacheStore = pgstore.NewCacheEntryStore(pool)
		budgetStore = pgstore.NewBudgetStore(pool)
		snapStore = pgstore.NewVolatilitySnapshotStore(pool)
	}

	scorer, err := scoring.NewScorer(cfg.Scoring, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build scorer")
	}
	sizer, err := sizing.NewSizer(cfg.Sizing, cfg.Scoring.MaxPoints, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build sizer")
	}

	client := fetch.NewResilient(fetch.NewFileProvider(*dataDir), cfg.Fetch, logger)

	eval, err := evaluator.New(evaluator.Options{
		Config:     *cfg,
		Cache:      cache.NewHybrid(cfg.Cache, cacheStore, logger),
		Budget:     budgetStore,
		Client:     client,
		Calculator: metrics.NewCalculator(),
		Classifier: liquidity.NewClassifier(cfg.Liquidity),
		Scorer:     scorer,
		Sizer:      sizer,
		Tracker:    voltracker.NewTracker(cfg.Tracker, snapStore, client, logger),
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build evaluator")
	}

	list := splitTickers(*tickers)
	logger.Info().Int("tickers", len(list)).Time("as_of", asOf).Msg("starting scan")

	scores, err := eval.EvaluateBatch(ctx, list, asOf)
	if err != nil {
		logger.Fatal().Err(err).Msg("scan failed")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(scores, "", "  ")
		fmt.Println(string(output))
		return
	}
	printScores(scores)

	if *bankroll > 0 {
		printSizing(eval, cfg, scores, *bankroll)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// printScores outputs a human-readable ranking table.
func printScores(scores []*domain.CompositeScore) {
	fmt.Println()
	fmt.Println("=== Scan Results ===")
	fmt.Printf("%-8s %-10s %8s %8s %8s %8s %8s  %s\n",
		"TICKER", "TIER", "SCORE", "VRP", "CONS", "SKEW", "LIQ", "FLAGS")
	for _, s := range scores {
		fmt.Printf("%-8s %-10s %8.2f %8.2f %8.2f %8.2f %8.2f  %s\n",
			s.Ticker, s.Tier, s.CompositeValue,
			s.VRPComponent, s.ConsistencyComponent, s.SkewComponent, s.LiquidityComponent,
			strings.Join(s.DataFlags, ","))
	}
}

// printSizing outputs prior-based sizing for every non-skip score.
func printSizing(eval *evaluator.Evaluator, cfg *config.Config, scores []*domain.CompositeScore, bankroll float64) {
	stats := &domain.HistoricalStats{
		WinRate:    cfg.Sizing.PriorWinRate,
		AvgWinPct:  cfg.Sizing.PriorAvgWinPct,
		AvgLossPct: cfg.Sizing.PriorAvgLossPct,
	}

	fmt.Println()
	fmt.Println("=== Position Sizing ===")
	fmt.Printf("%-8s %10s %10s %12s\n", "TICKER", "KELLY", "APPLIED", "CAPITAL")
	for _, s := range scores {
		if s.Tier == domain.ScoreTierSkip {
			continue
		}
		pos, err := eval.SizePosition(s, stats, bankroll)
		if err != nil {
			continue
		}
		fmt.Printf("%-8s %10.4f %10.4f %12.2f\n",
			s.Ticker, pos.KellyFraction, pos.AppliedFraction, pos.CapitalAllocated)
	}
}
