package memory

import (
	"context"
	"sync"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string][]domain.EquityCurvePoint // keyed by run_id
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string][]domain.EquityCurvePoint),
	}
}

// InsertBulk adds all points of a run.
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, points []domain.EquityCurvePoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[runID] = append(s.data[runID], points...)
	return nil
}

// GetByRunID retrieves all points for a run, ordered by sequence_index ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]domain.EquityCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[runID]
	result := make([]domain.EquityCurvePoint, len(points))
	copy(result, points)
	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
