package marketdata

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/pkg/formulas"
)

// VolatilityService computes annualized realized volatility of daily returns.
type VolatilityService struct {
	history  domain.HistoryFetcher
	lookback int
	mu       sync.RWMutex
	vols     map[string]float64
	log      zerolog.Logger
}

// NewVolatilityService creates a volatility service.
func NewVolatilityService(history domain.HistoryFetcher, lookback int, log zerolog.Logger) *VolatilityService {
	if lookback <= MinOverlappingReturns {
		lookback = DefaultLookbackDays
	}
	return &VolatilityService{
		history:  history,
		lookback: lookback,
		vols:     make(map[string]float64),
		log:      log.With().Str("service", "volatility").Logger(),
	}
}

// GetVolatility implements domain.VolatilityProvider. The second return value
// is false when there is not enough history.
func (s *VolatilityService) GetVolatility(ctx context.Context, ticker string) (float64, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" || s.history == nil {
		return 0, false
	}

	s.mu.RLock()
	vol, ok := s.vols[symbol]
	s.mu.RUnlock()
	if ok {
		return vol, true
	}

	closes, err := s.history.GetDailyCloses(ctx, symbol, s.lookback+1)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", symbol).Msg("Failed to get closes for volatility")
		return 0, false
	}

	prices := make([]float64, 0, len(closes))
	for _, c := range closes {
		if c.Close > 0 {
			prices = append(prices, c.Close)
		}
	}
	returns := formulas.CalculateReturns(prices)
	if len(returns) < MinOverlappingReturns {
		s.log.Debug().Str("ticker", symbol).Int("returns", len(returns)).Msg("Not enough history for volatility")
		return 0, false
	}

	vol = formulas.AnnualizedVolatility(returns)
	if !validVolatility(vol) {
		return 0, false
	}

	s.mu.Lock()
	s.vols[symbol] = vol
	s.mu.Unlock()
	return vol, true
}

func validVolatility(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
