package domain

import (
	"context"
	"time"
)

// PriceFetcher defines the latest-close lookup used by price refresh and by
// orphaned-option underlying resolution.
// A false second return means no price is available; callers leave the
// existing price unchanged.
type PriceFetcher interface {
	FetchLatestClose(ctx context.Context, ticker string) (float64, bool)
}

// BetaProvider returns a position's beta against the market benchmark.
// Implementations return 0.0 for money market and escrow instruments and
// 1.0 when the regression cannot be computed.
type BetaProvider interface {
	GetBeta(ctx context.Context, ticker, description string) float64
}

// VolatilityProvider returns an annualized volatility for an underlying.
type VolatilityProvider interface {
	GetVolatility(ctx context.Context, ticker string) (float64, bool)
}

// DailyClose is one daily closing price.
type DailyClose struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// HistoryFetcher defines the daily close history source used for beta and
// realized volatility.
type HistoryFetcher interface {
	GetDailyCloses(ctx context.Context, ticker string, days int) ([]DailyClose, error)
}
