package memory

import (
	"context"
	"sync"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// BudgetStore is an in-memory implementation of storage.BudgetStore. The
// single mutex gives the same no-lost-updates guarantee the transactional
// PostgreSQL implementation provides across processes.
type BudgetStore struct {
	mu   sync.Mutex
	used map[time.Time]int64
}

// NewBudgetStore creates a new in-memory budget store.
func NewBudgetStore() *BudgetStore {
	return &BudgetStore{
		used: make(map[time.Time]int64),
	}
}

// Consume atomically adds n calls to the day's usage if doing so stays within
// limit.
func (s *BudgetStore) Consume(_ context.Context, day time.Time, n, limit int64) (int64, bool, error) {
	if n < 0 {
		return 0, false, storage.ErrInvalidInput
	}

	key := domain.Day(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.used[key]
	if current+n > limit {
		return current, false, nil
	}

	s.used[key] = current + n
	return current + n, true, nil
}

// Used returns the day's current usage.
func (s *BudgetStore) Used(_ context.Context, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.used[domain.Day(day)], nil
}

var _ storage.BudgetStore = (*BudgetStore)(nil)
