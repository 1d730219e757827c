package postgres

import (
	"context"
	"fmt"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// HistoricalMoveStore implements storage.HistoricalMoveStore using PostgreSQL.
type HistoricalMoveStore struct {
	pool *Pool
}

// NewHistoricalMoveStore creates a new HistoricalMoveStore.
func NewHistoricalMoveStore(pool *Pool) *HistoricalMoveStore {
	return &HistoricalMoveStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoricalMoveStore = (*HistoricalMoveStore)(nil)

const insertMoveQuery = `
	INSERT INTO historical_moves (ticker, earnings_date, move_pct, direction)
	VALUES ($1, $2, $3, $4)
`

// Insert adds a new move. Returns ErrDuplicateKey if (ticker, earnings_date) exists.
func (s *HistoricalMoveStore) Insert(ctx context.Context, m *domain.HistoricalMove) error {
	_, err := s.pool.Exec(ctx, insertMoveQuery,
		m.Ticker, domain.Day(m.EarningsDate), m.MovePct, m.Direction,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert historical move: %w", err)
	}
	return nil
}

// InsertBulk adds multiple moves atomically. Fails entire batch on any duplicate.
func (s *HistoricalMoveStore) InsertBulk(ctx context.Context, moves []*domain.HistoricalMove) error {
	if len(moves) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range moves {
		_, err := tx.Exec(ctx, insertMoveQuery,
			m.Ticker, domain.Day(m.EarningsDate), m.MovePct, m.Direction,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert historical move in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTicker retrieves all moves for a ticker, ordered by earnings_date ASC.
func (s *HistoricalMoveStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.HistoricalMove, error) {
	query := `
		SELECT ticker, earnings_date, move_pct, direction
		FROM historical_moves
		WHERE ticker = $1
		ORDER BY earnings_date ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query historical moves: %w", err)
	}
	defer rows.Close()

	var result []*domain.HistoricalMove
	for rows.Next() {
		var m domain.HistoricalMove
		if err := rows.Scan(&m.Ticker, &m.EarningsDate, &m.MovePct, &m.Direction); err != nil {
			return nil, fmt.Errorf("scan historical move: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historical moves: %w", err)
	}

	return result, nil
}
