package postgres

import (
	"context"
	"fmt"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// VolatilitySnapshotStore implements storage.VolatilitySnapshotStore using PostgreSQL.
type VolatilitySnapshotStore struct {
	pool *Pool
}

// NewVolatilitySnapshotStore creates a new VolatilitySnapshotStore.
func NewVolatilitySnapshotStore(pool *Pool) *VolatilitySnapshotStore {
	return &VolatilitySnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VolatilitySnapshotStore = (*VolatilitySnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (ticker, date) exists.
func (s *VolatilitySnapshotStore) Insert(ctx context.Context, snap *domain.VolatilitySnapshot) error {
	query := `
		INSERT INTO volatility_snapshots (ticker, date, implied_vol, historical_vol)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Ticker, domain.Day(snap.Date), snap.ImpliedVol, snap.HistoricalVol,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert volatility snapshot: %w", err)
	}
	return nil
}

// GetByTickerDate retrieves one snapshot. Returns ErrNotFound if not exists.
func (s *VolatilitySnapshotStore) GetByTickerDate(ctx context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	query := `
		SELECT ticker, date, implied_vol, historical_vol, created_at
		FROM volatility_snapshots
		WHERE ticker = $1 AND date = $2
	`

	row := s.pool.QueryRow(ctx, query, ticker, domain.Day(date))

	var snap domain.VolatilitySnapshot
	err := row.Scan(&snap.Ticker, &snap.Date, &snap.ImpliedVol, &snap.HistoricalVol, &snap.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get volatility snapshot: %w", err)
	}
	return &snap, nil
}

// GetRange retrieves snapshots within [from, to] inclusive, ordered by date ASC.
func (s *VolatilitySnapshotStore) GetRange(ctx context.Context, ticker string, from, to time.Time) ([]*domain.VolatilitySnapshot, error) {
	query := `
		SELECT ticker, date, implied_vol, historical_vol, created_at
		FROM volatility_snapshots
		WHERE ticker = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query volatility snapshot range: %w", err)
	}
	defer rows.Close()

	var result []*domain.VolatilitySnapshot
	for rows.Next() {
		var snap domain.VolatilitySnapshot
		if err := rows.Scan(&snap.Ticker, &snap.Date, &snap.ImpliedVol, &snap.HistoricalVol, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan volatility snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volatility snapshots: %w", err)
	}

	return result, nil
}
