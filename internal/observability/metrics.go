// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	ScoresByTier       *prometheus.CounterVec

	// Cache metrics
	CacheHits    *prometheus.CounterVec
	CacheMisses  prometheus.Counter
	CacheCorrupt prometheus.Counter

	// Tracker metrics
	BackfillRuns     prometheus.Counter
	BackfillInserted prometheus.Counter

	// Budget metrics
	BudgetConsumed prometheus.Counter
	BudgetDenied   prometheus.Counter

	// Fetch metrics
	FetchCalls   *prometheus.CounterVec
	FetchLatency *prometheus.HistogramVec
	BreakerOpens prometheus.Counter

	// Backtest metrics
	BacktestRuns    *prometheus.CounterVec
	TradesSimulated prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vrp_edge_lab"
	}

	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Total number of ticker evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluation_duration_seconds",
			Help:      "Ticker evaluation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ScoresByTier: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "scores_by_tier_total",
			Help:      "Total number of composite scores produced by tier",
		}, []string{"tier"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses across both tiers",
		}),
		CacheCorrupt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "corrupted_entries_total",
			Help:      "Total number of cache entries invalidated as corrupted",
		}),

		BackfillRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voltracker",
			Name:      "backfill_runs_total",
			Help:      "Total number of on-demand backfill runs",
		}),
		BackfillInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voltracker",
			Name:      "backfill_rows_inserted_total",
			Help:      "Total number of snapshots inserted by backfills",
		}),

		BudgetConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "calls_consumed_total",
			Help:      "Total number of external calls granted against the daily budget",
		}),
		BudgetDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "calls_denied_total",
			Help:      "Total number of external calls denied by the daily budget",
		}),

		FetchCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "calls_total",
			Help:      "Total number of external data calls by operation and status",
		}, []string{"op", "status"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "call_latency_seconds",
			Help:      "External data call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		BreakerOpens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "breaker_opens_total",
			Help:      "Total number of circuit breaker open transitions",
		}),

		BacktestRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvaluation records one ticker evaluation.
func RecordEvaluation(outcome string, seconds float64) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.EvaluationDuration.Observe(seconds)
}

// RecordScoreTier counts a produced composite score by tier.
func RecordScoreTier(tier string) {
	DefaultMetrics.ScoresByTier.WithLabelValues(tier).Inc()
}

// RecordCacheHit counts a cache hit on the given tier ("l1" or "l2").
func RecordCacheHit(tier string) {
	DefaultMetrics.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss counts a full cache miss.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordCacheCorrupt counts a cache entry invalidated as corrupted.
func RecordCacheCorrupt() {
	DefaultMetrics.CacheCorrupt.Inc()
}

// RecordBackfill records a backfill run and its inserted row count.
func RecordBackfill(inserted int) {
	DefaultMetrics.BackfillRuns.Inc()
	DefaultMetrics.BackfillInserted.Add(float64(inserted))
}

// RecordBudget records a budget consumption attempt.
func RecordBudget(granted bool, n int64) {
	if granted {
		DefaultMetrics.BudgetConsumed.Add(float64(n))
	} else {
		DefaultMetrics.BudgetDenied.Inc()
	}
}

// RecordFetch records one external call.
func RecordFetch(op, status string, seconds float64) {
	DefaultMetrics.FetchCalls.WithLabelValues(op, status).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(op).Observe(seconds)
}

// RecordBreakerOpen counts a circuit breaker closed-to-open transition.
func RecordBreakerOpen() {
	DefaultMetrics.BreakerOpens.Inc()
}

// RecordBacktest records a completed backtest run and its trade count.
func RecordBacktest(status string, trades int) {
	DefaultMetrics.BacktestRuns.WithLabelValues(status).Inc()
	DefaultMetrics.TradesSimulated.Add(float64(trades))
}
