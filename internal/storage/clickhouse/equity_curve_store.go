package clickhouse

import (
	"context"
	"fmt"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
// Equity curves are bulk analytic output: written once per backtest run,
// queried for analysis, never updated.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds all points of a run.
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, points []domain.EquityCurvePoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve_points (
			run_id, sequence_index, equity, peak_equity, drawdown_pct
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			runID, uint32(p.SequenceIndex), p.Equity, p.PeakEquity, p.DrawdownPct,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by sequence_index ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]domain.EquityCurvePoint, error) {
	query := `
		SELECT sequence_index, equity, peak_equity, drawdown_pct
		FROM equity_curve_points
		WHERE run_id = ?
		ORDER BY sequence_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	var result []domain.EquityCurvePoint
	for rows.Next() {
		var p domain.EquityCurvePoint
		var seq uint32
		if err := rows.Scan(&seq, &p.Equity, &p.PeakEquity, &p.DrawdownPct); err != nil {
			return nil, fmt.Errorf("scan equity curve point: %w", err)
		}
		p.SequenceIndex = int(seq)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve points: %w", err)
	}

	return result, nil
}
