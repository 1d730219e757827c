package postgres

import (
	"context"
	"fmt"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, run_id, ticker, entry_date, exit_date,
		score, allocation_pct, raw_outcome_pct, pnl_pct, is_winner, equity_after
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const selectTradeColumns = `
	SELECT trade_id, run_id, ticker, entry_date, exit_date,
		score, allocation_pct, raw_outcome_pct, pnl_pct, is_winner, equity_after
	FROM trades
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery,
		t.TradeID, t.RunID, t.Ticker, domain.Day(t.EntryDate), domain.Day(t.ExitDate),
		t.Score, t.AllocationPct, t.RawOutcomePct, t.PnlPct, t.IsWinner, t.EquityAfter,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		_, err := tx.Exec(ctx, insertTradeQuery,
			t.TradeID, t.RunID, t.Ticker, domain.Day(t.EntryDate), domain.Day(t.ExitDate),
			t.Score, t.AllocationPct, t.RawOutcomePct, t.PnlPct, t.IsWinner, t.EquityAfter,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all trades for a run, ordered by entry_date ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error) {
	query := selectTradeColumns + ` WHERE run_id = $1 ORDER BY entry_date ASC, trade_id ASC`
	return s.queryTrades(ctx, query, runID)
}

// GetByTicker retrieves all trades for a ticker, ordered by entry_date ASC.
func (s *TradeStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.Trade, error) {
	query := selectTradeColumns + ` WHERE ticker = $1 ORDER BY entry_date ASC, trade_id ASC`
	return s.queryTrades(ctx, query, ticker)
}

func (s *TradeStore) queryTrades(ctx context.Context, query string, args ...any) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Ticker, &t.EntryDate, &t.ExitDate,
			&t.Score, &t.AllocationPct, &t.RawOutcomePct, &t.PnlPct, &t.IsWinner, &t.EquityAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	return result, nil
}
