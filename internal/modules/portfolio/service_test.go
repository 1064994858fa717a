package portfolio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/exposure"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/validation"
	testingpkg "github.com/aristath/exposure/internal/testing"
)

var testNow = time.Date(2025, 3, 17, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, betas domain.BetaProvider, prices domain.PriceFetcher, vols domain.VolatilityProvider, source VolatilitySource) *Service {
	t.Helper()
	calc, err := options.NewCalculator(options.Config{
		Method:       options.MethodBinomial,
		RiskFreeRate: options.DefaultRiskFreeRate,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)

	return NewService(calc, betas, prices, vols, nil, Config{
		RiskFreeRate:      options.DefaultRiskFreeRate,
		DefaultVolatility: options.DefaultVolatility,
		VolatilitySource:  source,
		Now:               func() time.Time { return testNow },
	}, zerolog.Nop())
}

func brokerRow(index int, symbol, description, quantity, price, value string) validation.Row {
	return validation.NewRow(index, map[string]string{
		validation.ColSymbol:           symbol,
		validation.ColDescription:      description,
		validation.ColQuantity:         quantity,
		validation.ColLastPrice:        price,
		validation.ColCurrentValue:     value,
		validation.ColType:             "Margin",
		validation.ColPercentOfAccount: "1.00%",
	})
}

func aaplRows() []validation.Row {
	return []validation.Row{
		brokerRow(0, "AAPL", "APPLE INC", "100", "$150.00", "$15,000.00"),
		brokerRow(1, " -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "1", "$5.00", "$500.00"),
	}
}

func TestProcessPortfolio_StockWithCall(t *testing.T) {
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "AAPL", "APPLE INC").Return(1.2).Once()

	svc := newTestService(t, betas, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), aaplRows())
	require.NoError(t, err)
	betas.AssertExpectations(t)

	require.Len(t, result.Groups, 1)
	g := result.Groups[0]
	assert.Equal(t, "AAPL", g.Ticker)
	require.NotNil(t, g.StockPosition)
	assert.InDelta(t, 15000.0, g.StockPosition.MarketExposure, 1e-9)
	assert.InDelta(t, 18000.0, g.StockPosition.BetaAdjustedExposure, 1e-9)

	require.Len(t, g.OptionPositions, 1)
	call := g.OptionPositions[0]
	assert.InDelta(t, 15000.0, call.NotionalValue, 1e-9)
	assert.Greater(t, call.Delta, 0.15)
	assert.Less(t, call.Delta, 0.45)
	assert.InDelta(t, call.Delta*15000, call.DeltaExposure, 1e-9)
	assert.InDelta(t, 1.2, call.UnderlyingBeta, 1e-12)
	assert.Equal(t, 5.0, call.Price)
	assert.Equal(t, options.DefaultVolatility, call.Volatility)

	assert.InDelta(t, 15000+call.DeltaExposure, g.NetExposure, 1e-9)
	assert.Equal(t, 1, g.CallCount)
	assert.Equal(t, 0, g.PutCount)

	assert.InDelta(t, 15500.0, result.Summary.LongExposure.TotalExposure, 1e-9)
	assert.InDelta(t, 15500.0, result.Summary.PortfolioEstimateValue, 1e-9)
	assert.Empty(t, result.Skipped)
	require.NoError(t, exposure.Reconcile(result.Summary))
}

func TestProcessPortfolio_OrphanedOptions(t *testing.T) {
	prices := new(testingpkg.MockPriceFetcher)
	prices.On("FetchLatestClose", mock.Anything, "SPY").Return(500.0, true).Once()
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "SPY", "").Return(1.0).Once()

	rows := []validation.Row{
		brokerRow(0, " -SPY250620C520", "SPY JUN 20 2025 $520 CALL", "2", "$6.10", "$1,220.00"),
		brokerRow(1, " -SPY250620P480", "SPY JUN 20 2025 $480 PUT", "-1", "$7.40", "($740.00)"),
		brokerRow(2, " -SPY250919C550", "SPY SEP 19 2025 $550 CALL", "1", "$9.00", "$900.00"),
	}

	svc := newTestService(t, betas, prices, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)
	prices.AssertExpectations(t)
	betas.AssertExpectations(t)

	require.Len(t, result.Groups, 1)
	g := result.Groups[0]
	assert.Equal(t, "SPY", g.Ticker)
	require.NotNil(t, g.StockPosition)
	assert.Equal(t, 0.0, g.StockPosition.Quantity)
	assert.Equal(t, 500.0, g.StockPosition.Price)
	assert.Len(t, g.OptionPositions, 3)
	assert.Equal(t, 2, g.CallCount)
	assert.Equal(t, 1, g.PutCount)

	// short put has positive delta exposure
	put := g.OptionPositions[1]
	assert.Equal(t, domain.OptionTypePut, put.OptionType)
	assert.Greater(t, put.DeltaExposure, 0.0)
}

func TestProcessPortfolio_UnresolvedOrphanIsFatal(t *testing.T) {
	prices := new(testingpkg.MockPriceFetcher)
	prices.On("FetchLatestClose", mock.Anything, "QQQ").Return(0.0, false)

	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, " -QQQ250620C500", "QQQ JUN 20 2025 $500 CALL", "1", "$12.00", "$1,200.00"),
	}

	svc := newTestService(t, nil, prices, nil, VolatilityFlat)
	_, err := svc.ProcessPortfolio(context.Background(), rows)

	var unresolved *domain.UnresolvedUnderlyingError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "QQQ", unresolved.Underlying)
	assert.Equal(t, 1, unresolved.Options)
	assert.True(t, IsFatal(err))
}

func TestProcessPortfolio_MissingColumns(t *testing.T) {
	rows := []validation.Row{validation.NewRow(0, map[string]string{
		validation.ColSymbol:   "AAPL",
		validation.ColQuantity: "1",
	})}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	_, err := svc.ProcessPortfolio(context.Background(), rows)

	var structural *domain.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Contains(t, structural.Missing, validation.ColDescription)
	assert.True(t, IsFatal(err))
}

func TestProcessPortfolio_EmptyInput(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	assert.NotNil(t, result.Skipped)
	assert.Equal(t, 0.0, result.Summary.NetMarketExposure)
}

func TestProcessPortfolio_CashDeduplication(t *testing.T) {
	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, "SPAXX**", "HELD IN MONEY MARKET", "1000", "$1.00", "$1,000.00"),
		brokerRow(2, "SPAXX**", "HELD IN MONEY MARKET", "500", "$1.00", "$500.00"),
	}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.CashLike, 1)
	cash := result.CashLike[0]
	assert.Equal(t, "SPAXX", cash.Ticker)
	assert.Equal(t, 1500.0, cash.MarketValue)
	assert.Equal(t, 1500.0, cash.Quantity)
	assert.Equal(t, 0.0, cash.Beta)

	assert.Len(t, result.Groups, 1)
	assert.Equal(t, 1500.0, result.Summary.CashLikeValue)
	assert.Equal(t, 1, result.Summary.CashLikeCount)
}

func TestProcessPortfolio_LowBetaIsCash(t *testing.T) {
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "SGOV", mock.Anything).Return(0.02)
	betas.On("GetBeta", mock.Anything, "MSFT", mock.Anything).Return(0.9)

	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, "SGOV", "ISHARES 0-3 MONTH TREASURY BOND ETF", "20", "$100.50", "$2,010.00"),
	}

	svc := newTestService(t, betas, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.CashLike, 1)
	assert.Equal(t, "SGOV", result.CashLike[0].Ticker)
	assert.Equal(t, 2010.0, result.CashLike[0].MarketValue)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "MSFT", result.Groups[0].Ticker)
}

func TestProcessPortfolio_PendingActivity(t *testing.T) {
	pending := validation.NewRow(1, map[string]string{
		validation.ColSymbol:               "Pending Activity",
		validation.ColDescription:          "",
		validation.ColQuantity:             "",
		validation.ColLastPrice:            "",
		validation.ColCurrentValue:         "",
		validation.ColType:                 "",
		validation.ColPercentOfAccount:     "",
		validation.ColLastPriceChange:      "--",
		validation.ColTodaysGainLossDollar: "-$125.50",
	})
	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		pending,
	}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, -125.5, result.PendingActivityValue)
	assert.Equal(t, -125.5, result.Summary.PendingActivityValue)
	assert.Len(t, result.Groups, 1)
	assert.Empty(t, result.Skipped)
	assert.InDelta(t, 4000-125.5, result.Summary.PortfolioEstimateValue, 1e-9)
}

func TestProcessPortfolio_SkipsMalformedRows(t *testing.T) {
	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, "BAD", "BAD QUANTITY INC", "ten", "$10.00", "$100.00"),
		brokerRow(2, " -MSFT250620C450", "MSFT JUN 20 2025 $450 CALL", "1.5", "$3.00", "$450.00"),
		brokerRow(3, "", "NO SYMBOL", "5", "$10.00", "$50.00"),
		brokerRow(4, "ZERO", "NOTHING HELD", "0", "$10.00", "$0.00"),
	}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Empty(t, result.Groups[0].OptionPositions)

	skippedRows := make([]int, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skippedRows = append(skippedRows, s.Index)
		assert.NotEmpty(t, s.Reason)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, skippedRows)
}

func TestProcessPortfolio_MergesRepeatedStockRows(t *testing.T) {
	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, "MSFT", "MICROSOFT CORP", "-4", "$400.00", "($1,600.00)"),
	}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 6.0, result.Groups[0].StockPosition.Quantity)
	assert.Equal(t, 2400.0, result.Groups[0].StockPosition.MarketValue)
}

func TestProcessPortfolio_FirstGroupFailureIsFatal(t *testing.T) {
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "NANB", mock.Anything).Return(math.NaN())
	betas.On("GetBeta", mock.Anything, "MSFT", mock.Anything).Return(0.9)

	rows := []validation.Row{
		brokerRow(0, "NANB", "NO BETA CORP", "10", "$20.00", "$200.00"),
		brokerRow(1, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
	}

	svc := newTestService(t, betas, nil, nil, VolatilityFlat)
	_, err := svc.ProcessPortfolio(context.Background(), rows)

	var first *domain.FirstGroupError
	require.ErrorAs(t, err, &first)
	assert.Equal(t, "NANB", first.Ticker)
	assert.True(t, IsFatal(err))
}

func TestProcessPortfolio_LaterGroupFailureIsSkipped(t *testing.T) {
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "NANB", mock.Anything).Return(math.NaN())
	betas.On("GetBeta", mock.Anything, "MSFT", mock.Anything).Return(0.9)

	rows := []validation.Row{
		brokerRow(0, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
		brokerRow(1, "NANB", "NO BETA CORP", "10", "$20.00", "$200.00"),
	}

	svc := newTestService(t, betas, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, -1, result.Skipped[0].Index)
	assert.Equal(t, "NANB", result.Skipped[0].Symbol)
}

func TestProcessPortfolio_UnpricedStockIsSkipped(t *testing.T) {
	tests := []struct {
		name   string
		prices domain.PriceFetcher
	}{
		{"offline", nil},
		{"fetch fails", func() domain.PriceFetcher {
			prices := new(testingpkg.MockPriceFetcher)
			prices.On("FetchLatestClose", mock.Anything, "AAPL").Return(0.0, false).Once()
			return prices
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []validation.Row{
				brokerRow(0, "AAPL", "APPLE INC", "100", "--", "--"),
				brokerRow(1, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
			}

			svc := newTestService(t, nil, tt.prices, nil, VolatilityFlat)
			result, err := svc.ProcessPortfolio(context.Background(), rows)
			require.NoError(t, err)

			require.Len(t, result.Groups, 1)
			assert.Equal(t, "MSFT", result.Groups[0].Ticker)
			assert.InDelta(t, 4000.0, result.Summary.NetMarketExposure, 1e-9)

			require.Len(t, result.Skipped, 1)
			assert.Equal(t, 0, result.Skipped[0].Index)
			assert.Equal(t, "AAPL", result.Skipped[0].Symbol)
			assert.Contains(t, result.Skipped[0].Reason, "no price available")
		})
	}
}

func TestProcessPortfolio_UnpricedStockWithOptionsIsFatal(t *testing.T) {
	rows := []validation.Row{
		brokerRow(0, "AAPL", "APPLE INC", "100", "--", "--"),
		brokerRow(1, " -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "-1", "$5.00", "($500.00)"),
	}

	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	_, err := svc.ProcessPortfolio(context.Background(), rows)

	var unresolved *domain.UnresolvedUnderlyingError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "AAPL", unresolved.Underlying)
}

func TestProcessPortfolio_LowBetaStockWithCoveredCall(t *testing.T) {
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "XYZ", mock.Anything).Return(0.05)

	rows := []validation.Row{
		brokerRow(0, "XYZ", "XYZ HOLDINGS", "100", "$50.00", "$5,000.00"),
		brokerRow(1, " -XYZ250417C55", "XYZ APR 17 2025 $55 CALL", "-1", "$1.00", "($100.00)"),
	}

	svc := newTestService(t, betas, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.CashLike, 1)
	assert.Equal(t, "XYZ", result.CashLike[0].Ticker)
	assert.Equal(t, 5000.0, result.CashLike[0].MarketValue)

	require.Len(t, result.Groups, 1)
	g := result.Groups[0]
	assert.Equal(t, "XYZ", g.Ticker)
	require.NotNil(t, g.StockPosition)
	assert.Equal(t, 0.0, g.StockPosition.Quantity)
	assert.Equal(t, 50.0, g.StockPosition.Price)

	require.Len(t, g.OptionPositions, 1)
	call := g.OptionPositions[0]
	assert.InDelta(t, 5000.0, call.NotionalValue, 1e-9)
	assert.Less(t, call.DeltaExposure, 0.0)
	assert.Empty(t, result.Skipped)
}

func TestProcessPortfolio_OrphanUsesRowPriceBeforeFetcher(t *testing.T) {
	prices := new(testingpkg.MockPriceFetcher)
	betas := new(testingpkg.MockBetaProvider)
	betas.On("GetBeta", mock.Anything, "XYZ", mock.Anything).Return(0.05)

	rows := []validation.Row{
		brokerRow(0, "XYZ", "XYZ HOLDINGS", "100", "$50.00", "$5,000.00"),
		brokerRow(1, " -XYZ250417C55", "XYZ APR 17 2025 $55 CALL", "-1", "$1.00", "($100.00)"),
	}

	svc := newTestService(t, betas, prices, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)

	// the row price is usable, so the fetcher is never consulted
	prices.AssertNotCalled(t, "FetchLatestClose", mock.Anything, "XYZ")
	require.Len(t, result.Groups, 1)
	assert.Equal(t, 50.0, result.Groups[0].StockPosition.Price)
}

func TestProcessPortfolio_FetchesMissingStockPrice(t *testing.T) {
	prices := new(testingpkg.MockPriceFetcher)
	prices.On("FetchLatestClose", mock.Anything, "NOPX").Return(25.0, true).Once()

	rows := []validation.Row{brokerRow(0, "NOPX", "NO PRICE CORP", "10", "", "")}

	svc := newTestService(t, nil, prices, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), rows)
	require.NoError(t, err)
	prices.AssertExpectations(t)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 250.0, result.Groups[0].StockPosition.MarketValue)
}

func TestProcessPortfolio_VolatilitySources(t *testing.T) {
	t.Run("implied", func(t *testing.T) {
		svc := newTestService(t, nil, nil, nil, VolatilityImplied)
		result, err := svc.ProcessPortfolio(context.Background(), aaplRows())
		require.NoError(t, err)

		// $5 for a 1-month 7% OTM call is well above the 30% vol price
		vol := result.Groups[0].OptionPositions[0].Volatility
		assert.Greater(t, vol, options.DefaultVolatility)
	})

	t.Run("historical", func(t *testing.T) {
		vols := new(testingpkg.MockVolatilityProvider)
		vols.On("GetVolatility", mock.Anything, "AAPL").Return(0.45, true).Once()

		svc := newTestService(t, nil, nil, vols, VolatilityHistorical)
		result, err := svc.ProcessPortfolio(context.Background(), aaplRows())
		require.NoError(t, err)
		vols.AssertExpectations(t)

		assert.Equal(t, 0.45, result.Groups[0].OptionPositions[0].Volatility)
	})

	t.Run("historical unavailable", func(t *testing.T) {
		vols := new(testingpkg.MockVolatilityProvider)
		vols.On("GetVolatility", mock.Anything, "AAPL").Return(0.0, false)

		svc := newTestService(t, nil, nil, vols, VolatilityHistorical)
		result, err := svc.ProcessPortfolio(context.Background(), aaplRows())
		require.NoError(t, err)

		assert.Equal(t, options.DefaultVolatility, result.Groups[0].OptionPositions[0].Volatility)
	})
}

func TestRecalculateGroup(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), aaplRows())
	require.NoError(t, err)
	original := result.Groups[0]
	snapshot := original.Clone()

	same := svc.RecalculateGroup(original, 150)
	assert.Equal(t, original.StockPosition.MarketValue, same.StockPosition.MarketValue)
	assert.Equal(t, original.OptionPositions[0].Price, same.OptionPositions[0].Price)

	up := svc.RecalculateGroup(original, 165)
	assert.Equal(t, 16500.0, up.StockPosition.MarketValue)
	upCall := up.OptionPositions[0]
	assert.Equal(t, 165.0, upCall.UnderlyingPrice)
	assert.Greater(t, upCall.Price, 5.0)
	assert.Greater(t, upCall.Delta, original.OptionPositions[0].Delta)
	assert.InDelta(t, 16500.0, upCall.NotionalValue, 1e-9)

	down := svc.RecalculateGroup(original, 1)
	assert.GreaterOrEqual(t, down.OptionPositions[0].Price, 0.0)

	assert.Equal(t, snapshot, original, "input group must not change")
}

func TestRefreshPrices(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, VolatilityFlat)
	result, err := svc.ProcessPortfolio(context.Background(), []validation.Row{
		brokerRow(0, "AAPL", "APPLE INC", "100", "$150.00", "$15,000.00"),
		brokerRow(1, " -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "1", "$5.00", "$500.00"),
		brokerRow(2, "MSFT", "MICROSOFT CORP", "10", "$400.00", "$4,000.00"),
	})
	require.NoError(t, err)

	prices := new(testingpkg.MockPriceFetcher)
	prices.On("FetchLatestClose", mock.Anything, "AAPL").Return(160.0, true).Once()
	prices.On("FetchLatestClose", mock.Anything, "MSFT").Return(0.0, false).Once()
	svc.prices.fetcher = prices

	groups, report := svc.RefreshPrices(context.Background(), result.Groups)
	prices.AssertExpectations(t)

	require.Len(t, report, 2)
	assert.Equal(t, PriceResolved, report[0].State)
	assert.Equal(t, 160.0, report[0].Price)
	assert.Equal(t, 150.0, report[0].Previous)
	assert.Equal(t, PriceDefaulted, report[1].State)
	assert.Equal(t, 400.0, report[1].Price)

	assert.Equal(t, 16000.0, groups[0].StockPosition.MarketValue)
	assert.Equal(t, 160.0, groups[0].OptionPositions[0].UnderlyingPrice)
	assert.Equal(t, 4000.0, groups[1].StockPosition.MarketValue)
	assert.Equal(t, 15000.0, result.Groups[0].StockPosition.MarketValue, "input groups are not modified")
}

func TestPriceResolver_Paths(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		force   bool
		fetched float64
		ok      bool
		state   PriceState
		price   float64
		path    []PriceState
	}{
		{"current price", 10, false, 0, false, PriceResolved, 10, []PriceState{PriceNeedsPrice, PriceResolved}},
		{"fetched", 0, false, 12, true, PriceResolved, 12, []PriceState{PriceNeedsPrice, PriceFetching, PriceResolved}},
		{"forced fetch", 10, true, 12, true, PriceResolved, 12, []PriceState{PriceNeedsPrice, PriceFetching, PriceResolved}},
		{"defaulted", 10, true, 0, false, PriceDefaulted, 10, []PriceState{PriceNeedsPrice, PriceFetching, PriceDefaulted}},
		{"failed", 0, false, 0, false, PriceFailed, 0, []PriceState{PriceNeedsPrice, PriceFetching, PriceFailed}},
		{"bad fetch value", 0, false, -3, true, PriceFailed, 0, []PriceState{PriceNeedsPrice, PriceFetching, PriceFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(testingpkg.MockPriceFetcher)
			fetcher.On("FetchLatestClose", mock.Anything, "XYZ").Return(tt.fetched, tt.ok).Maybe()

			r := &priceResolver{fetcher: fetcher, log: zerolog.Nop()}
			res := r.resolve(context.Background(), "XYZ", tt.current, tt.force)

			assert.Equal(t, tt.state, res.State)
			assert.Equal(t, tt.price, res.Price)
			assert.Equal(t, tt.path, res.Path)
			assert.True(t, res.Terminal())
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&domain.StructuralError{Reason: "missing columns"}))
	assert.True(t, IsFatal(&domain.FirstGroupError{Ticker: "X", Err: errors.New("boom")}))
	assert.False(t, IsFatal(errors.New("boom")))
	assert.False(t, IsFatal(domain.NewDataError(1, "Quantity", "x", "not numeric")))
}
