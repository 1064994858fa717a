// Package marketdata derives betas and realized volatilities from daily close
// history.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/clientdata"
	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/pkg/formulas"
)

const (
	// DefaultBeta is used whenever a regression cannot be computed.
	DefaultBeta = 1.0
	// DefaultBenchmark is the market index betas are measured against.
	DefaultBenchmark = "SPY"
	// DefaultLookbackDays is one year of trading sessions.
	DefaultLookbackDays = formulas.TradingDaysPerYear
	// MinOverlappingReturns is the smallest sample a beta or volatility is
	// computed from.
	MinOverlappingReturns = 20
)

type cachedBeta struct {
	Beta      float64 `json:"beta"`
	Benchmark string  `json:"benchmark"`
	Samples   int     `json:"samples"`
}

// BetaService regresses a ticker's daily returns on the benchmark's.
type BetaService struct {
	history   domain.HistoryFetcher
	cacheRepo *clientdata.Repository
	benchmark string
	lookback  int
	mu        sync.RWMutex
	betas     map[string]float64
	log       zerolog.Logger
}

// NewBetaService creates a beta service. cacheRepo is optional.
func NewBetaService(history domain.HistoryFetcher, cacheRepo *clientdata.Repository, benchmark string, lookback int, log zerolog.Logger) *BetaService {
	if benchmark == "" {
		benchmark = DefaultBenchmark
	}
	if lookback <= MinOverlappingReturns {
		lookback = DefaultLookbackDays
	}
	return &BetaService{
		history:   history,
		cacheRepo: cacheRepo,
		benchmark: strings.ToUpper(benchmark),
		lookback:  lookback,
		betas:     make(map[string]float64),
		log:       log.With().Str("service", "beta").Logger(),
	}
}

// Benchmark returns the benchmark ticker.
func (s *BetaService) Benchmark() string {
	return s.benchmark
}

// GetBeta implements domain.BetaProvider.
func (s *BetaService) GetBeta(ctx context.Context, ticker, description string) float64 {
	if domain.IsMoneyMarketInstrument(ticker, description) {
		return 0
	}

	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return DefaultBeta
	}
	if symbol == s.benchmark {
		return 1.0
	}

	if beta, ok := s.cached(symbol); ok {
		return beta
	}

	beta, samples, err := s.compute(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", symbol).Float64("beta", DefaultBeta).Msg("Beta unavailable, using default")
		return DefaultBeta
	}

	s.mu.Lock()
	s.betas[symbol] = beta
	s.mu.Unlock()

	if s.cacheRepo != nil {
		entry := cachedBeta{Beta: beta, Benchmark: s.benchmark, Samples: samples}
		if err := s.cacheRepo.Store(clientdata.TableBetas, symbol, entry, clientdata.TTLBeta); err != nil {
			s.log.Warn().Err(err).Str("ticker", symbol).Msg("Failed to cache beta")
		}
	}

	s.log.Debug().Str("ticker", symbol).Float64("beta", beta).Int("samples", samples).Msg("Computed beta")
	return beta
}

func (s *BetaService) cached(symbol string) (float64, bool) {
	s.mu.RLock()
	beta, ok := s.betas[symbol]
	s.mu.RUnlock()
	if ok {
		return beta, true
	}

	if s.cacheRepo == nil {
		return 0, false
	}
	data, err := s.cacheRepo.GetIfFresh(clientdata.TableBetas, symbol)
	if err != nil || data == nil {
		return 0, false
	}
	var entry cachedBeta
	if err := json.Unmarshal(data, &entry); err != nil || entry.Benchmark != s.benchmark {
		return 0, false
	}

	s.mu.Lock()
	s.betas[symbol] = entry.Beta
	s.mu.Unlock()
	return entry.Beta, true
}

func (s *BetaService) compute(ctx context.Context, symbol string) (float64, int, error) {
	if s.history == nil {
		return 0, 0, fmt.Errorf("no history source configured")
	}

	asset, err := s.history.GetDailyCloses(ctx, symbol, s.lookback+1)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get closes for %s: %w", symbol, err)
	}
	bench, err := s.history.GetDailyCloses(ctx, s.benchmark, s.lookback+1)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get closes for %s: %w", s.benchmark, err)
	}

	assetReturns, benchReturns := AlignedReturns(asset, bench)
	if len(assetReturns) < MinOverlappingReturns {
		return 0, 0, fmt.Errorf("only %d overlapping returns, need %d", len(assetReturns), MinOverlappingReturns)
	}

	beta, ok := formulas.Beta(assetReturns, benchReturns)
	if !ok {
		return 0, 0, fmt.Errorf("benchmark returns have no variance")
	}
	return beta, len(assetReturns), nil
}

// AlignedReturns pairs the two series on their common dates and returns the
// day-over-day returns of each over those dates.
func AlignedReturns(a, b []domain.DailyClose) ([]float64, []float64) {
	byDate := make(map[string]float64, len(b))
	for _, c := range b {
		byDate[c.Date.Format(domain.ExpiryLayout)] = c.Close
	}

	var pa, pb []float64
	for _, c := range a {
		if other, ok := byDate[c.Date.Format(domain.ExpiryLayout)]; ok && c.Close > 0 && other > 0 {
			pa = append(pa, c.Close)
			pb = append(pb, other)
		}
	}
	return formulas.CalculateReturns(pa), formulas.CalculateReturns(pb)
}
