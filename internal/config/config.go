// Package config loads and validates the application configuration.
// Invariant violations (weights not summing to 1.0, unordered thresholds)
// are fatal at load time: a config that passed Load is safe to run.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vrp-edge-lab/internal/domain"
)

// weightSumTolerance is the allowed deviation of the factor weight sum from 1.0.
const weightSumTolerance = 1e-6

// Config is the root application configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Clickhouse ClickhouseConfig `yaml:"clickhouse"`
	Cache      CacheConfig      `yaml:"cache"`
	Budget     BudgetConfig     `yaml:"budget"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Liquidity  LiquidityConfig  `yaml:"liquidity"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Sizing     SizingConfig     `yaml:"sizing"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Workers    int              `yaml:"workers" default:"4" validate:"gte=1"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// PostgresConfig holds the durable store connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ClickhouseConfig holds the analytic store connection settings. Optional:
// an empty DSN disables equity-curve persistence.
type ClickhouseConfig struct {
	DSN string `yaml:"dsn"`
}

// CacheConfig controls the hybrid two-tier cache.
type CacheConfig struct {
	L1MaxSize int           `yaml:"l1_max_size" default:"1000" validate:"gte=1"`
	L1TTL     time.Duration `yaml:"l1_ttl" default:"5m"`
	L2TTL     time.Duration `yaml:"l2_ttl" default:"24h"`
}

// BudgetConfig bounds external API usage per day across all workers.
type BudgetConfig struct {
	DailyLimit int64 `yaml:"daily_limit" default:"500" validate:"gte=0"`
}

// FetchConfig controls resilience around external data calls.
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout" default:"10s"`
	MaxRetries       int           `yaml:"max_retries" default:"3" validate:"gte=0"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" default:"500ms"`
	BreakerThreshold int           `yaml:"breaker_threshold" default:"5" validate:"gte=1"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" default:"1m"`
}

// TrackerConfig controls the volatility history tracker.
type TrackerConfig struct {
	LookbackDays  int `yaml:"lookback_days" default:"7" validate:"gte=1"`
	ToleranceDays int `yaml:"tolerance_days" default:"2" validate:"gte=0"`
	BackfillDays  int `yaml:"backfill_days" default:"14" validate:"gte=1"`
}

// LiquidityConfig holds the classifier thresholds. OI ratio tiers are lower
// bounds (higher is better); spread tiers are upper bounds (lower is better).
type LiquidityConfig struct {
	OIExcellentMin float64 `yaml:"oi_excellent_min" default:"2.0"`
	OIGoodMin      float64 `yaml:"oi_good_min" default:"1.0"`
	OIWarningMin   float64 `yaml:"oi_warning_min" default:"0.5"`

	SpreadExcellentMax float64 `yaml:"spread_excellent_max" default:"5.0"`
	SpreadGoodMax      float64 `yaml:"spread_good_max" default:"10.0"`
	SpreadWarningMax   float64 `yaml:"spread_warning_max" default:"20.0"`

	// MinVolume degrades the OI tier to WARNING when daily contract volume
	// is below it.
	MinVolume int64 `yaml:"min_volume" default:"100"`

	// ContractsPerPosition normalizes raw open interest into an OI ratio.
	ContractsPerPosition int64 `yaml:"contracts_per_position" default:"10" validate:"gte=1"`
}

// Weights are the named, versioned composite factor weights.
// Must sum to 1.0 within 1e-6.
type Weights struct {
	VRP         float64 `yaml:"vrp" default:"0.4"`
	Consistency float64 `yaml:"consistency" default:"0.25"`
	Skew        float64 `yaml:"skew" default:"0.15"`
	Liquidity   float64 `yaml:"liquidity" default:"0.2"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.VRP + w.Consistency + w.Skew + w.Liquidity
}

// ScoringConfig holds the composite scorer configuration.
type ScoringConfig struct {
	Version   string  `yaml:"version" default:"v1"`
	Weights   Weights `yaml:"weights"`
	MaxPoints float64 `yaml:"max_points" default:"100" validate:"gt=0"`

	// Linear ramp thresholds per factor: 0 points at or below skip,
	// max points at or above excellent.
	VRPSkip              float64 `yaml:"vrp_skip" default:"1.0"`
	VRPExcellent         float64 `yaml:"vrp_excellent" default:"1.5"`
	ConsistencySkip      float64 `yaml:"consistency_skip" default:"0.3"`
	ConsistencyExcellent float64 `yaml:"consistency_excellent" default:"0.8"`
	SkewExcellent        float64 `yaml:"skew_excellent" default:"0.6"`

	// Liquidity tier points as fractions of MaxPoints.
	LiquidityGoodFraction    float64 `yaml:"liquidity_good_fraction" default:"0.75"`
	LiquidityWarningFraction float64 `yaml:"liquidity_warning_fraction" default:"0.4"`

	// Composite tier cutoffs, strictly descending.
	TierExcellentMin float64 `yaml:"tier_excellent_min" default:"75"`
	TierGoodMin      float64 `yaml:"tier_good_min" default:"60"`
	TierMarginalMin  float64 `yaml:"tier_marginal_min" default:"45"`
}

// SizingConfig holds the fractional-Kelly position sizer configuration.
type SizingConfig struct {
	// KellyMultiplier scales the raw Kelly fraction (0.25 = quarter Kelly).
	KellyMultiplier float64 `yaml:"kelly_multiplier" default:"0.25" validate:"gt=0,lte=1"`

	// Allocation clamp as a fraction of bankroll, applied to any positive
	// allocation regardless of raw Kelly output.
	MinAllocationPct float64 `yaml:"min_allocation_pct" default:"0.01"`
	MaxAllocationPct float64 `yaml:"max_allocation_pct" default:"0.10"`

	// ScaleByConfidence scales allocation by composite_value/max within the
	// clamp so higher-confidence setups get more capital.
	ScaleByConfidence bool `yaml:"scale_by_confidence" default:"true"`

	// Priors used by the backtest engine before enough trades accumulate.
	PriorWinRate    float64 `yaml:"prior_win_rate" default:"0.55"`
	PriorAvgWinPct  float64 `yaml:"prior_avg_win_pct" default:"25"`
	PriorAvgLossPct float64 `yaml:"prior_avg_loss_pct" default:"20"`
	PriorMinTrades  int     `yaml:"prior_min_trades" default:"10" validate:"gte=1"`
}

// BacktestConfig holds the backtest engine configuration.
type BacktestConfig struct {
	StartingEquity float64 `yaml:"starting_equity" default:"10000" validate:"gt=0"`
	MinScore       float64 `yaml:"min_score" default:"60"`
	MaxConcurrent  int     `yaml:"max_concurrent" default:"5" validate:"gte=1"`

	Walkforward WalkforwardConfig `yaml:"walkforward"`
}

// WalkforwardConfig controls rolling train/test validation.
type WalkforwardConfig struct {
	TrainDays int `yaml:"train_days" default:"365" validate:"gte=1"`
	TestDays  int `yaml:"test_days" default:"90" validate:"gte=1"`
	StepDays  int `yaml:"step_days" default:"90" validate:"gte=1"`

	// CutoffLadder is the candidate min-score cutoffs evaluated on each
	// training window.
	CutoffLadder []float64 `yaml:"cutoff_ladder" default:"[45,55,65,75]"`
}

// Load reads, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes configuration bytes, applying defaults and validation.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration with all defaults applied.
func Default() (*Config, error) {
	return Parse(nil)
}

// Validate checks struct tags plus the cross-field invariants that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if diff := math.Abs(c.Scoring.Weights.Sum() - 1.0); diff > weightSumTolerance {
		return domain.NewInvariantViolation("weights-sum-to-one",
			fmt.Sprintf("scoring weights sum to %.8f", c.Scoring.Weights.Sum()))
	}
	if c.Scoring.Weights.VRP < 0 || c.Scoring.Weights.Consistency < 0 ||
		c.Scoring.Weights.Skew < 0 || c.Scoring.Weights.Liquidity < 0 {
		return domain.NewInvariantViolation("weights-non-negative", "a scoring weight is negative")
	}

	if c.Scoring.VRPExcellent <= c.Scoring.VRPSkip {
		return domain.NewInvariantViolation("vrp-thresholds-ordered",
			fmt.Sprintf("excellent %.4f must exceed skip %.4f", c.Scoring.VRPExcellent, c.Scoring.VRPSkip))
	}
	if c.Scoring.ConsistencyExcellent <= c.Scoring.ConsistencySkip {
		return domain.NewInvariantViolation("consistency-thresholds-ordered",
			fmt.Sprintf("excellent %.4f must exceed skip %.4f", c.Scoring.ConsistencyExcellent, c.Scoring.ConsistencySkip))
	}
	if !(c.Scoring.TierExcellentMin > c.Scoring.TierGoodMin && c.Scoring.TierGoodMin > c.Scoring.TierMarginalMin) {
		return domain.NewInvariantViolation("tier-cutoffs-ordered",
			"tier cutoffs must be strictly descending excellent > good > marginal")
	}

	if !(c.Liquidity.OIExcellentMin > c.Liquidity.OIGoodMin && c.Liquidity.OIGoodMin > c.Liquidity.OIWarningMin) {
		return domain.NewInvariantViolation("oi-thresholds-ordered",
			"open interest tier minimums must be strictly descending")
	}
	if !(c.Liquidity.SpreadExcellentMax < c.Liquidity.SpreadGoodMax && c.Liquidity.SpreadGoodMax < c.Liquidity.SpreadWarningMax) {
		return domain.NewInvariantViolation("spread-thresholds-ordered",
			"spread tier maximums must be strictly ascending")
	}

	if c.Sizing.MinAllocationPct < 0 || c.Sizing.MaxAllocationPct <= 0 ||
		c.Sizing.MinAllocationPct > c.Sizing.MaxAllocationPct {
		return domain.NewInvariantViolation("allocation-clamp-ordered",
			fmt.Sprintf("allocation clamp [%.4f, %.4f] is not a valid range",
				c.Sizing.MinAllocationPct, c.Sizing.MaxAllocationPct))
	}

	if len(c.Backtest.Walkforward.CutoffLadder) == 0 {
		return domain.NewInvariantViolation("cutoff-ladder-nonempty",
			"walkforward cutoff ladder must contain at least one candidate")
	}

	return nil
}
