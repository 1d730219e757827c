package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/reporting"
	"vrp-edge-lab/internal/storage"
	chstore "vrp-edge-lab/internal/storage/clickhouse"
	pgstore "vrp-edge-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	runID := flag.String("run-id", "", "Backtest run id to report on (required)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	if *runID == "" {
		logger.Fatal().Msg("--run-id is required")
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Clickhouse.DSN = *clickhouseDSN
	}
	if cfg.Postgres.DSN == "" || cfg.Clickhouse.DSN == "" {
		logger.Fatal().Msg("postgres and clickhouse DSNs are required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer conn.Close()

	var tradeStore storage.TradeStore = pgstore.NewTradeStore(pool)
	var curveStore storage.EquityCurveStore = chstore.NewEquityCurveStore(conn)

	gen := reporting.NewGenerator(tradeStore, curveStore)
	report, err := gen.Generate(ctx, *runID)
	if err != nil {
		logger.Fatal().Err(err).Str("run_id", *runID).Msg("generate report")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create output directory")
	}

	files := map[string]string{
		"REPORT.md":  reporting.RenderMarkdown(report),
		"TRADES.csv": reporting.RenderTradesCSV(report),
		"EQUITY.csv": reporting.RenderEquityCSV(report),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			logger.Fatal().Err(err).Str("file", path).Msg("write report file")
		}
	}

	fmt.Println("Report generated:")
	fmt.Printf("  - %s/REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/TRADES.csv\n", *outputDir)
	fmt.Printf("  - %s/EQUITY.csv\n", *outputDir)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}
