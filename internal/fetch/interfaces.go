// Package fetch defines the external market-data surface and the resilience
// wrapper every outbound call goes through.
package fetch

import (
	"context"
	"time"

	"vrp-edge-lab/internal/domain"
)

// ChainProvider fetches current option-chain snapshots.
type ChainProvider interface {
	// Chain returns the near-expiry chain snapshot for a ticker. Returns
	// ErrDataUnavailable when the ticker has no listed chain.
	Chain(ctx context.Context, ticker string) (*domain.ChainSnapshot, error)
}

// MoveProvider fetches realized post-earnings moves.
type MoveProvider interface {
	// HistoricalMoves returns past earnings moves for a ticker, most recent
	// last. Returns ErrDataUnavailable when no history exists.
	HistoricalMoves(ctx context.Context, ticker string) ([]*domain.HistoricalMove, error)
}

// VolatilityProvider fetches one day's volatility snapshot.
type VolatilityProvider interface {
	// VolatilitySnapshot returns the snapshot for a ticker and date. Returns
	// ErrDataUnavailable on non-trading days or missing history.
	VolatilitySnapshot(ctx context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error)
}

// Client is the full external data surface.
type Client interface {
	ChainProvider
	MoveProvider
	VolatilityProvider
}
