package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

func testTrade(id, runID, ticker string, entry time.Time) *domain.Trade {
	return &domain.Trade{
		TradeID:   id,
		RunID:     runID,
		Ticker:    ticker,
		EntryDate: entry,
		ExitDate:  entry.AddDate(0, 0, 2),
		PnlPct:    1.5,
	}
}

func TestTradeStore_InsertAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	if err := s.Insert(ctx, testTrade("t1", "r1", "AAPL", entry)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := s.Insert(ctx, testTrade("t1", "r1", "AAPL", entry))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InsertBulkAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	if err := s.Insert(ctx, testTrade("t1", "r1", "AAPL", entry)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := []*domain.Trade{
		testTrade("t2", "r1", "MSFT", entry),
		testTrade("t1", "r1", "AAPL", entry), // duplicate
	}
	if err := s.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch may have landed.
	trades, err := s.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(trades) != 1 {
		t.Errorf("got %d trades, want 1 after rejected batch", len(trades))
	}
}

func TestTradeStore_GetByRunIDOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	batch := []*domain.Trade{
		testTrade("t3", "r1", "CCC", base.AddDate(0, 0, 14)),
		testTrade("t1", "r1", "AAA", base),
		testTrade("t2", "r1", "BBB", base.AddDate(0, 0, 7)),
		testTrade("tx", "r2", "AAA", base),
	}
	if err := s.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	trades, err := s.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(trades))
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if trades[i].TradeID != want {
			t.Errorf("position %d: trade %s, want %s", i, trades[i].TradeID, want)
		}
	}
}

func TestTradeStore_CopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	if err := s.Insert(ctx, testTrade("t1", "r1", "AAPL", entry)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	trades, _ := s.GetByRunID(ctx, "r1")
	trades[0].PnlPct = -99

	again, _ := s.GetByRunID(ctx, "r1")
	if again[0].PnlPct != 1.5 {
		t.Error("mutating a returned trade must not affect the store")
	}
}
