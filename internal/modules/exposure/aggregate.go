// Package exposure rolls portfolio groups up into the portfolio summary.
package exposure

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/exposure/internal/domain"
)

// ReconcileTolerance is the absolute tolerance of the sum-of-parts check.
const ReconcileTolerance = 1e-2

// Component names used in the breakdown component maps.
const (
	ComponentLongStocksValue         = "Long Stocks Value"
	ComponentLongStocksBetaAdjusted  = "Long Stocks Beta-Adjusted"
	ComponentLongOptionsValue        = "Long Options Value"
	ComponentLongOptionsBetaAdjusted = "Long Options Beta-Adjusted"

	ComponentShortStocksValue         = "Short Stocks Value"
	ComponentShortStocksBetaAdjusted  = "Short Stocks Beta-Adjusted"
	ComponentShortOptionsValue        = "Short Options Value"
	ComponentShortOptionsBetaAdjusted = "Short Options Beta-Adjusted"

	ComponentNetOptionsDeltaExposure = "Net Options Delta Exposure"
)

// bucket accumulates market value and beta-adjusted exposure for one side.
type bucket struct {
	stockValue        float64
	stockBetaAdjusted float64
	optionValue       float64
	optionBetaAdj     float64
}

// Aggregate builds a PortfolioSummary from groups, the deduplicated cash-like
// positions and the pending activity value. It has no side effects; now
// stamps PriceUpdatedAt.
//
// Stocks are bucketed long or short by the sign of their quantity, options by
// the sign of their own quantity. Buckets accumulate market value and
// beta-adjusted exposure, so short values stay negative.
func Aggregate(groups []domain.PortfolioGroup, cashLike []domain.StockPosition, pendingActivityValue float64, now time.Time) (domain.PortfolioSummary, error) {
	var long, short bucket
	var stockValue, optionValue, optionsDelta float64

	for _, g := range groups {
		if s := g.StockPosition; s != nil {
			stockValue += s.MarketValue
			if s.Quantity >= 0 {
				long.stockValue += s.MarketValue
				long.stockBetaAdjusted += s.BetaAdjustedExposure
			} else {
				short.stockValue += s.MarketValue
				short.stockBetaAdjusted += s.BetaAdjustedExposure
			}
		}

		for _, o := range g.OptionPositions {
			optionValue += o.MarketValue
			optionsDelta += o.DeltaExposure
			if o.Quantity >= 0 {
				long.optionValue += o.MarketValue
				long.optionBetaAdj += o.BetaAdjustedExposure
			} else {
				short.optionValue += o.MarketValue
				short.optionBetaAdj += o.BetaAdjustedExposure
			}
		}
	}

	longBreakdown, err := domain.NewExposureBreakdown(domain.ExposureSideLong, domain.ExposureBreakdownParams{
		StockExposure:       long.stockValue,
		StockBetaAdjusted:   long.stockBetaAdjusted,
		OptionDeltaExposure: long.optionValue,
		OptionBetaAdjusted:  long.optionBetaAdj,
		Description:         "Long stock positions and long option positions",
		Formula:             "Long Stocks Value + Long Options Value",
		Components: map[string]float64{
			ComponentLongStocksValue:         long.stockValue,
			ComponentLongStocksBetaAdjusted:  long.stockBetaAdjusted,
			ComponentLongOptionsValue:        long.optionValue,
			ComponentLongOptionsBetaAdjusted: long.optionBetaAdj,
		},
	})
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("failed to build long exposure: %w", err)
	}

	shortBreakdown, err := domain.NewExposureBreakdown(domain.ExposureSideShort, domain.ExposureBreakdownParams{
		StockExposure:       short.stockValue,
		StockBetaAdjusted:   short.stockBetaAdjusted,
		OptionDeltaExposure: short.optionValue,
		OptionBetaAdjusted:  short.optionBetaAdj,
		Description:         "Short stock positions and short option positions (negative values)",
		Formula:             "Short Stocks Value + Short Options Value",
		Components: map[string]float64{
			ComponentShortStocksValue:         short.stockValue,
			ComponentShortStocksBetaAdjusted:  short.stockBetaAdjusted,
			ComponentShortOptionsValue:        short.optionValue,
			ComponentShortOptionsBetaAdjusted: short.optionBetaAdj,
		},
	})
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("failed to build short exposure: %w", err)
	}

	optionsBreakdown, err := domain.NewExposureBreakdown(domain.ExposureSideNet, domain.ExposureBreakdownParams{
		OptionDeltaExposure: long.optionValue + short.optionValue,
		OptionBetaAdjusted:  long.optionBetaAdj + short.optionBetaAdj,
		Description:         "Net view of all option positions",
		Formula:             "Long Options Value + Short Options Value",
		Components: map[string]float64{
			ComponentLongOptionsValue:        long.optionValue,
			ComponentShortOptionsValue:       short.optionValue,
			ComponentNetOptionsDeltaExposure: optionsDelta,
		},
	})
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("failed to build options exposure: %w", err)
	}

	net := longBreakdown.TotalExposure + shortBreakdown.TotalExposure
	netBetaAdjusted := longBreakdown.TotalBetaAdjusted + shortBreakdown.TotalBetaAdjusted

	beta := 0.0
	if net != 0 {
		beta = netBetaAdjusted / net
	}

	shortPct := 0.0
	if longBreakdown.TotalExposure > 0 {
		shortPct = math.Abs(shortBreakdown.TotalExposure) / longBreakdown.TotalExposure * 100
	}

	cash := make([]domain.StockPosition, len(cashLike))
	copy(cash, cashLike)
	cashValue := 0.0
	for _, c := range cash {
		cashValue += c.MarketValue
	}

	estimate := stockValue + optionValue + cashValue + pendingActivityValue
	cashPct := 0.0
	if estimate > 0 {
		cashPct = cashValue / estimate * 100
	}

	return domain.PortfolioSummary{
		NetMarketExposure:      net,
		PortfolioBeta:          beta,
		LongExposure:           longBreakdown,
		ShortExposure:          shortBreakdown,
		OptionsExposure:        optionsBreakdown,
		ShortPercentage:        shortPct,
		CashLikePositions:      cash,
		CashLikeValue:          cashValue,
		CashLikeCount:          len(cash),
		CashPercentage:         cashPct,
		StockValue:             stockValue,
		OptionValue:            optionValue,
		PendingActivityValue:   pendingActivityValue,
		PortfolioEstimateValue: estimate,
		PriceUpdatedAt:         now.UTC().Format(time.RFC3339),
		HelpText:               domain.DefaultHelpText(),
	}, nil
}

// Reconcile checks the invariants every summary must satisfy: the estimate
// equals the sum of its parts within ReconcileTolerance, net exposure is long
// plus short, and each breakdown respects its sign convention.
func Reconcile(s domain.PortfolioSummary) error {
	parts := s.StockValue + s.OptionValue + s.CashLikeValue + s.PendingActivityValue
	if diff := math.Abs(s.PortfolioEstimateValue - parts); diff > ReconcileTolerance {
		return fmt.Errorf("portfolio estimate %.2f does not reconcile with its parts %.2f (diff %.4f)",
			s.PortfolioEstimateValue, parts, diff)
	}
	if net := s.LongExposure.TotalExposure + s.ShortExposure.TotalExposure; net != s.NetMarketExposure {
		return fmt.Errorf("net market exposure %.6f != long %.6f + short %.6f",
			s.NetMarketExposure, s.LongExposure.TotalExposure, s.ShortExposure.TotalExposure)
	}
	if err := s.LongExposure.Validate(domain.ExposureSideLong); err != nil {
		return err
	}
	if err := s.ShortExposure.Validate(domain.ExposureSideShort); err != nil {
		return err
	}
	return nil
}
