package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// HistoricalMoveStore is an in-memory implementation of storage.HistoricalMoveStore.
type HistoricalMoveStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.HistoricalMove // ticker -> earnings date -> row
}

// NewHistoricalMoveStore creates a new in-memory historical move store.
func NewHistoricalMoveStore() *HistoricalMoveStore {
	return &HistoricalMoveStore{
		data: make(map[string]map[time.Time]*domain.HistoricalMove),
	}
}

// Insert adds a new move. Returns ErrDuplicateKey if (ticker, earnings_date) exists.
func (s *HistoricalMoveStore) Insert(_ context.Context, m *domain.HistoricalMove) error {
	if m == nil || m.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(m)
}

// InsertBulk adds multiple moves atomically. Fails entire batch on any duplicate.
func (s *HistoricalMoveStore) InsertBulk(_ context.Context, moves []*domain.HistoricalMove) error {
	if len(moves) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check duplicates (existing + intra-batch).
	batchKeys := make(map[string]map[time.Time]struct{}, len(moves))
	for _, m := range moves {
		if m == nil || m.Ticker == "" {
			return storage.ErrInvalidInput
		}
		day := domain.Day(m.EarningsDate)
		if _, exists := s.data[m.Ticker][day]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[m.Ticker][day]; exists {
			return storage.ErrDuplicateKey
		}
		if batchKeys[m.Ticker] == nil {
			batchKeys[m.Ticker] = make(map[time.Time]struct{})
		}
		batchKeys[m.Ticker][day] = struct{}{}
	}

	for _, m := range moves {
		if err := s.insertLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *HistoricalMoveStore) insertLocked(m *domain.HistoricalMove) error {
	day := domain.Day(m.EarningsDate)

	rows, ok := s.data[m.Ticker]
	if !ok {
		rows = make(map[time.Time]*domain.HistoricalMove)
		s.data[m.Ticker] = rows
	}

	if _, exists := rows[day]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *m
	cp.EarningsDate = day
	rows[day] = &cp
	return nil
}

// GetByTicker retrieves all moves for a ticker, ordered by earnings_date ASC.
func (s *HistoricalMoveStore) GetByTicker(_ context.Context, ticker string) ([]*domain.HistoricalMove, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HistoricalMove
	for _, m := range s.data[ticker] {
		cp := *m
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EarningsDate.Before(result[j].EarningsDate)
	})

	return result, nil
}

var _ storage.HistoricalMoveStore = (*HistoricalMoveStore)(nil)
