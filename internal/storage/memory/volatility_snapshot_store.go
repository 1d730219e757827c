package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// VolatilitySnapshotStore is an in-memory implementation of
// storage.VolatilitySnapshotStore.
type VolatilitySnapshotStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.VolatilitySnapshot // ticker -> date -> row
}

// NewVolatilitySnapshotStore creates a new in-memory volatility snapshot store.
func NewVolatilitySnapshotStore() *VolatilitySnapshotStore {
	return &VolatilitySnapshotStore{
		data: make(map[string]map[time.Time]*domain.VolatilitySnapshot),
	}
}

// Insert adds a new snapshot. Returns ErrDuplicateKey if (ticker, date) exists.
func (s *VolatilitySnapshotStore) Insert(_ context.Context, snap *domain.VolatilitySnapshot) error {
	if snap == nil || snap.Ticker == "" {
		return storage.ErrInvalidInput
	}

	day := domain.Day(snap.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[snap.Ticker]
	if !ok {
		rows = make(map[time.Time]*domain.VolatilitySnapshot)
		s.data[snap.Ticker] = rows
	}

	if _, exists := rows[day]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *snap
	cp.Date = day
	rows[day] = &cp
	return nil
}

// GetByTickerDate retrieves one snapshot. Returns ErrNotFound if not exists.
func (s *VolatilitySnapshotStore) GetByTickerDate(_ context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[ticker][domain.Day(date)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *snap
	return &cp, nil
}

// GetRange retrieves snapshots within [from, to] inclusive, ordered by date ASC.
func (s *VolatilitySnapshotStore) GetRange(_ context.Context, ticker string, from, to time.Time) ([]*domain.VolatilitySnapshot, error) {
	fromDay := domain.Day(from)
	toDay := domain.Day(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolatilitySnapshot
	for day, snap := range s.data[ticker] {
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		cp := *snap
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.VolatilitySnapshotStore = (*VolatilitySnapshotStore)(nil)
