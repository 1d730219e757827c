package postgres

import (
	"context"
	"fmt"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// BudgetStore implements storage.BudgetStore using PostgreSQL. The increment
// is a single conditional upsert, so concurrent workers across processes
// cannot lose updates or overshoot the limit.
type BudgetStore struct {
	pool *Pool
}

// NewBudgetStore creates a new BudgetStore.
func NewBudgetStore(pool *Pool) *BudgetStore {
	return &BudgetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BudgetStore = (*BudgetStore)(nil)

// Consume atomically adds n calls to the day's usage if doing so stays within
// limit. The WHERE clause on the conflict update makes the check-and-add a
// single atomic statement.
func (s *BudgetStore) Consume(ctx context.Context, day time.Time, n, limit int64) (int64, bool, error) {
	if n < 0 {
		return 0, false, storage.ErrInvalidInput
	}
	if n > limit {
		current, err := s.Used(ctx, day)
		if err != nil {
			return 0, false, err
		}
		return current, false, nil
	}

	query := `
		INSERT INTO api_budget (day, used)
		VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE
		SET used = api_budget.used + $2
		WHERE api_budget.used + $2 <= $3
		RETURNING used
	`

	var used int64
	err := s.pool.QueryRow(ctx, query, domain.Day(day), n, limit).Scan(&used)
	if err != nil {
		if isNotFoundError(err) {
			// Conflict update rejected by the WHERE clause: over budget.
			current, uerr := s.Used(ctx, day)
			if uerr != nil {
				return 0, false, uerr
			}
			return current, false, nil
		}
		return 0, false, fmt.Errorf("consume budget: %w", err)
	}

	return used, true, nil
}

// Used returns the day's current usage.
func (s *BudgetStore) Used(ctx context.Context, day time.Time) (int64, error) {
	var used int64
	err := s.pool.QueryRow(ctx, `SELECT used FROM api_budget WHERE day = $1`, domain.Day(day)).Scan(&used)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get budget usage: %w", err)
	}
	return used, nil
}
