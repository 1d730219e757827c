package storage

import (
	"context"
	"time"

	"vrp-edge-lab/internal/domain"
)

// VolatilitySnapshotStore provides access to volatility_snapshots storage.
// Rows are append-only, keyed by (ticker, date).
type VolatilitySnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if (ticker, date) exists.
	Insert(ctx context.Context, s *domain.VolatilitySnapshot) error

	// GetByTickerDate retrieves one snapshot. Returns ErrNotFound if not exists.
	GetByTickerDate(ctx context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error)

	// GetRange retrieves snapshots for a ticker within [from, to] (inclusive),
	// ordered by date ASC.
	GetRange(ctx context.Context, ticker string, from, to time.Time) ([]*domain.VolatilitySnapshot, error)
}

// HistoricalMoveStore provides access to historical_moves storage.
// Rows are immutable once recorded, keyed by (ticker, earnings_date).
type HistoricalMoveStore interface {
	// Insert adds a new move. Returns ErrDuplicateKey if (ticker, earnings_date) exists.
	Insert(ctx context.Context, m *domain.HistoricalMove) error

	// InsertBulk adds multiple moves atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, moves []*domain.HistoricalMove) error

	// GetByTicker retrieves all moves for a ticker, ordered by earnings_date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.HistoricalMove, error)
}

// TradeStore provides access to simulated backtest trades.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByRunID retrieves all trades for a backtest run, ordered by entry_date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error)

	// GetByTicker retrieves all trades for a ticker, ordered by entry_date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.Trade, error)
}

// CacheEntryStore is the durable (L2) cache tier. Entries survive process
// restarts; expiry is enforced lazily by the hybrid cache on access.
type CacheEntryStore interface {
	// Put inserts or replaces the entry for a key.
	Put(ctx context.Context, e *domain.CacheEntry) error

	// Get retrieves an entry by key. Returns ErrNotFound if not exists.
	// Expiry is the caller's concern: expired rows are still returned.
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BudgetStore tracks the shared daily external-call budget. Increments must
// be transactional so concurrent workers never lose updates.
type BudgetStore interface {
	// Consume atomically adds n calls to the day's usage if doing so stays
	// within limit. Returns the usage after the attempt and whether the
	// consumption was granted.
	Consume(ctx context.Context, day time.Time, n, limit int64) (used int64, granted bool, err error)

	// Used returns the day's current usage.
	Used(ctx context.Context, day time.Time) (int64, error)
}

// EquityCurveStore persists backtest equity curves for later analysis.
// Bulk, append-heavy analytic data.
type EquityCurveStore interface {
	// InsertBulk adds all points of a run.
	InsertBulk(ctx context.Context, runID string, points []domain.EquityCurvePoint) error

	// GetByRunID retrieves all points for a run, ordered by sequence_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.EquityCurvePoint, error)
}
