package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vrp-edge-lab/internal/backtest"
	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/idhash"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/storage"
	chstore "vrp-edge-lab/internal/storage/clickhouse"
	"vrp-edge-lab/internal/storage/memory"
	"vrp-edge-lab/internal/storage/migrations"
	pgstore "vrp-edge-lab/internal/storage/postgres"
)

// opportunityRow is one line of the input dataset.
type opportunityRow struct {
	Ticker        string  `json:"ticker"`
	EntryDate     string  `json:"entry_date"` // YYYY-MM-DD
	ExitDate      string  `json:"exit_date"`  // YYYY-MM-DD
	Score         float64 `json:"score"`
	RawOutcomePct float64 `json:"raw_outcome_pct"`
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	oppPath := flag.String("opportunities", "", "JSON file of scored opportunities (required)")
	runLabel := flag.String("run-label", "default", "Run label, hashed into the run id")
	walkforward := flag.Bool("walkforward", false, "Run walkforward validation instead of a single pass")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")
	persist := flag.Bool("persist", false, "Persist trades and equity curve to storage")

	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *oppPath == "" {
		logger.Fatal().Msg("--opportunities is required")
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Clickhouse.DSN = *clickhouseDSN
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

	opportunities, err := loadOpportunities(*oppPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load opportunities")
	}

	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var curveStore storage.EquityCurveStore = memory.NewEquityCurveStore()

	if *persist && !*useMemory {
		if cfg.Postgres.DSN == "" {
			logger.Fatal().Msg("postgres dsn is required to persist without --use-memory")
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
		tradeStore = pgstore.NewTradeStore(pool)

		if cfg.Clickhouse.DSN != "" {
			conn, err := chstore.NewConn(ctx, cfg.Clickhouse.DSN)
			if err != nil {
				logger.Fatal().Err(err).Msg("connect to clickhouse")
			}
			defer conn.Close()

			if *migrate {
				if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
					logger.Fatal().Err(err).Msg("apply clickhouse migrations")
				}
			}
			curveStore = chstore.NewEquityCurveStore(conn)
		}
	}

	engine, err := backtest.NewEngine(cfg.Backtest, cfg.Sizing, cfg.Scoring.MaxPoints, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}

	runID := idhash.ComputeRunID(*runLabel, cfg.Scoring.Version)

	if *walkforward {
		result, err := engine.Walkforward(runID, opportunities)
		if err != nil {
			logger.Fatal().Err(err).Msg("walkforward failed")
		}
		if *outputJSON {
			output, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(output))
			return
		}
		printWalkforward(result)
		return
	}

	result, err := engine.Run(runID, opportunities)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	if *persist {
		if err := tradeStore.InsertBulk(ctx, result.Trades); err != nil {
			logger.Fatal().Err(err).Msg("persist trades")
		}
		if err := curveStore.InsertBulk(ctx, runID, result.EquityCurve); err != nil {
			logger.Fatal().Err(err).Msg("persist equity curve")
		}
		logger.Info().Str("run_id", runID).Int("trades", len(result.Trades)).Msg("run persisted")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}
	printResult(result)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// loadOpportunities reads and validates the input dataset.
func loadOpportunities(path string) ([]*backtest.Opportunity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []opportunityRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	opportunities := make([]*backtest.Opportunity, 0, len(rows))
	for i, row := range rows {
		entry, err := time.Parse("2006-01-02", row.EntryDate)
		if err != nil {
			return nil, fmt.Errorf("row %d entry_date: %w", i, err)
		}
		exit, err := time.Parse("2006-01-02", row.ExitDate)
		if err != nil {
			return nil, fmt.Errorf("row %d exit_date: %w", i, err)
		}
		opportunities = append(opportunities, &backtest.Opportunity{
			Ticker:    row.Ticker,
			EntryDate: entry,
			ExitDate:  exit,
			Score: &domain.CompositeScore{
				Ticker:         row.Ticker,
				AsOfDate:       entry,
				CompositeValue: row.Score,
			},
			RawOutcomePct: row.RawOutcomePct,
		})
	}
	return opportunities, nil
}

// printResult outputs a human-readable run summary.
func printResult(r *backtest.Result) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:          %s\n", r.RunID)
	fmt.Printf("Trades:          %d\n", len(r.Trades))
	fmt.Printf("Final Equity:    %.2f\n", r.FinalEquity)
	fmt.Printf("Max Drawdown:    %.2f%%\n", r.MaxDrawdownPct)

	if r.Stats == nil {
		fmt.Println("No trades executed; statistics are undefined.")
		return
	}

	fmt.Println()
	fmt.Println("Statistics:")
	fmt.Printf("  Win Rate:          %.2f%%\n", r.Stats.WinRate*100)
	fmt.Printf("  Avg Win:           %.2f%%\n", r.Stats.AvgWinPct)
	fmt.Printf("  Avg Loss:          %.2f%%\n", r.Stats.AvgLossPct)
	fmt.Printf("  Avg PnL:           %.4f%%\n", r.Stats.AvgPnlPct)
	fmt.Printf("  Profit Factor:     %.2f\n", r.Stats.ProfitFactor)
	fmt.Printf("  Sharpe (per-trade): %.3f\n", r.Stats.SharpeLike)
	fmt.Printf("  Max Consec Losses: %d\n", r.Stats.MaxConsecLoss)
	fmt.Printf("  Total Return:      %.2f%%\n", r.Stats.TotalReturnPct)
}

// printWalkforward outputs per-window and aggregate walkforward results.
func printWalkforward(r *backtest.WalkforwardResult) {
	fmt.Println()
	fmt.Println("=== Walkforward Result ===")
	fmt.Printf("%-4s %-12s %-12s %8s %8s %10s %8s\n",
		"WIN", "TEST START", "TEST END", "CUTOFF", "TRADES", "RETURN%", "MAXDD%")
	for _, w := range r.Windows {
		trades := 0
		ret := 0.0
		if w.Test.Stats != nil {
			trades = w.Test.Stats.TradeCount
			ret = w.Test.Stats.TotalReturnPct
		}
		fmt.Printf("%-4d %-12s %-12s %8.1f %8d %10.2f %8.2f\n",
			w.Index,
			w.TestStart.Format("2006-01-02"),
			w.TestEnd.Format("2006-01-02"),
			w.SelectedCutoff,
			trades, ret, w.Test.MaxDrawdownPct)
	}
	fmt.Println()
	fmt.Printf("Out-of-sample trades: %d\n", r.TestTrades)
	fmt.Printf("Mean test return:     %.2f%%\n", r.MeanTestReturn)
	fmt.Printf("Worst test drawdown:  %.2f%%\n", r.WorstTestDrawdown)
}
