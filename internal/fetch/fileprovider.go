package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vrp-edge-lab/internal/domain"
)

// FileProvider serves market data from JSON files on disk. It backs offline
// scans and backtest preparation from exported datasets:
//
//	<dir>/<TICKER>_chain.json    one domain.ChainSnapshot
//	<dir>/<TICKER>_moves.json    array of domain.HistoricalMove
//	<dir>/<TICKER>_vol_<DATE>.json  one domain.VolatilitySnapshot, DATE as 2006-01-02
//
// A missing file is ErrDataUnavailable, not an I/O error.
type FileProvider struct {
	dir string
}

var _ Client = (*FileProvider)(nil)

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Chain implements ChainProvider.
func (p *FileProvider) Chain(_ context.Context, ticker string) (*domain.ChainSnapshot, error) {
	var chain domain.ChainSnapshot
	if err := p.load(fmt.Sprintf("%s_chain.json", ticker), &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

// HistoricalMoves implements MoveProvider.
func (p *FileProvider) HistoricalMoves(_ context.Context, ticker string) ([]*domain.HistoricalMove, error) {
	var moves []*domain.HistoricalMove
	if err := p.load(fmt.Sprintf("%s_moves.json", ticker), &moves); err != nil {
		return nil, err
	}
	return moves, nil
}

// VolatilitySnapshot implements VolatilityProvider.
func (p *FileProvider) VolatilitySnapshot(_ context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	name := fmt.Sprintf("%s_vol_%s.json", ticker, date.Format("2006-01-02"))
	var snap domain.VolatilitySnapshot
	if err := p.load(name, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (p *FileProvider) load(name string, dest any) error {
	b, err := os.ReadFile(filepath.Join(p.dir, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", name, domain.ErrDataUnavailable)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
