package idhash

import (
	"testing"
	"time"
)

func TestComputeTradeID_Deterministic(t *testing.T) {
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	id1 := ComputeTradeID("run-1", "AAPL", entry)
	id2 := ComputeTradeID("run-1", "AAPL", entry)
	if id1 != id2 {
		t.Errorf("same inputs produced different ids: %s vs %s", id1, id2)
	}
	if len(id1) != 64 {
		t.Errorf("id length = %d, want 64 hex chars", len(id1))
	}
}

func TestComputeTradeID_TimeOfDayIgnored(t *testing.T) {
	morning := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	if ComputeTradeID("run-1", "AAPL", morning) != ComputeTradeID("run-1", "AAPL", evening) {
		t.Error("entries on the same date must hash identically")
	}
}

func TestComputeTradeID_DistinctInputs(t *testing.T) {
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	base := ComputeTradeID("run-1", "AAPL", entry)

	if ComputeTradeID("run-2", "AAPL", entry) == base {
		t.Error("different run ids must produce different trade ids")
	}
	if ComputeTradeID("run-1", "MSFT", entry) == base {
		t.Error("different tickers must produce different trade ids")
	}
	if ComputeTradeID("run-1", "AAPL", entry.AddDate(0, 0, 1)) == base {
		t.Error("different entry dates must produce different trade ids")
	}
}

func TestComputeRunID(t *testing.T) {
	if ComputeRunID("label", "v1") != ComputeRunID("label", "v1") {
		t.Error("run id must be deterministic")
	}
	if ComputeRunID("label", "v1") == ComputeRunID("label", "v2") {
		t.Error("config version must be part of the run id")
	}
}
