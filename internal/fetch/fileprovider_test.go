package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vrp-edge-lab/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileProvider_Chain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL_chain.json", `{
		"Ticker": "AAPL",
		"UnderlyingPrice": 190.5,
		"Quotes": [{"Strike": 190, "CallMid": 4.2, "PutMid": 3.8}]
	}`)

	p := NewFileProvider(dir)
	chain, err := p.Chain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if chain.UnderlyingPrice != 190.5 || len(chain.Quotes) != 1 {
		t.Errorf("unexpected chain: %+v", chain)
	}
}

func TestFileProvider_MissingFileIsDataUnavailable(t *testing.T) {
	p := NewFileProvider(t.TempDir())

	if _, err := p.Chain(context.Background(), "NOPE"); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if _, err := p.VolatilitySnapshot(context.Background(), "NOPE", date); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestFileProvider_MalformedJSONIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL_moves.json", `{broken`)

	p := NewFileProvider(dir)
	_, err := p.HistoricalMoves(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, domain.ErrDataUnavailable) {
		t.Error("malformed data is an error, not a clean miss")
	}
}
