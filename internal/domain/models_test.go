package domain

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCall(quantity int, delta float64) OptionPosition {
	return NewOptionPosition(OptionPositionParams{
		Contract: OptionContract{
			Underlying: "AAPL",
			Expiry:     "2025-04-17",
			Strike:     160,
			Type:       OptionTypeCall,
		},
		Description:     "AAPL APR 17 2025 $160 CALL",
		Quantity:        quantity,
		Price:           5.0,
		CostBasis:       4.5,
		UnderlyingPrice: 150,
		UnderlyingBeta:  1.2,
		Delta:           delta,
		Volatility:      0.3,
	})
}

func TestNewStockPosition(t *testing.T) {
	tests := []struct {
		name         string
		quantity     float64
		price        float64
		beta         float64
		wantExposure float64
		wantAdjusted float64
	}{
		{"long", 100, 150, 1.2, 15000, 18000},
		{"short", -50, 20, 1.5, -1000, -1500},
		{"flat", 0, 400, 1.0, 0, 0},
		{"negative beta", 10, 10, -0.5, 100, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStockPosition("TEST", tt.quantity, tt.price, tt.beta, tt.price)
			assert.InDelta(t, tt.wantExposure, p.MarketExposure, 1e-9)
			assert.InDelta(t, tt.wantAdjusted, p.BetaAdjustedExposure, 1e-9)
			assert.Equal(t, p.MarketExposure, p.MarketValue)
		})
	}
}

func TestStockPosition_WithPriceRecomputesTogether(t *testing.T) {
	p := NewStockPosition("AAPL", 100, 150, 1.2, 140)
	q := p.WithPrice(160)

	assert.Equal(t, 150.0, p.Price, "original must be untouched")
	assert.Equal(t, 16000.0, q.MarketExposure)
	assert.Equal(t, 16000.0, q.MarketValue)
	assert.InDelta(t, 19200.0, q.BetaAdjustedExposure, 1e-9)

	r := q.WithQuantity(-10)
	assert.Equal(t, -1600.0, r.MarketValue)
	assert.True(t, r.IsShort())
}

func TestNewCashPosition(t *testing.T) {
	p := NewCashPosition("SPAXX", "HELD IN MONEY MARKET", 0, 2500, 0)
	assert.Equal(t, 2500.0, p.Quantity)
	assert.Equal(t, 1.0, p.Price)
	assert.Equal(t, 2500.0, p.MarketValue)

	q := NewCashPosition("FDRXX", "", 200, 210, 0)
	assert.InDelta(t, 1.05, q.Price, 1e-12)
	assert.Equal(t, 210.0, q.MarketValue)
}

func TestOptionPosition_DerivedFields(t *testing.T) {
	o := sampleCall(2, 0.5)

	assert.Equal(t, 30000.0, o.NotionalValue)
	assert.Equal(t, 15000.0, o.DeltaExposure)
	assert.InDelta(t, 18000.0, o.BetaAdjustedExposure, 1e-9)
	assert.Equal(t, 1000.0, o.MarketValue)

	short := sampleCall(-2, -0.5)
	assert.Equal(t, 30000.0, short.NotionalValue, "notional uses |quantity|")
	assert.Equal(t, -1000.0, short.MarketValue)
	assert.Less(t, short.DeltaExposure, 0.0)
}

func TestOptionPosition_DeltaExposureSignProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		qty := rng.Intn(50) + 1
		rawDelta := rng.Float64()*0.98 + 0.01
		isCall := rng.Intn(2) == 0
		short := rng.Intn(2) == 0

		optionType := OptionTypeCall
		delta := rawDelta
		if !isCall {
			optionType = OptionTypePut
			delta = -rawDelta
		}
		if short {
			qty = -qty
			delta = -delta
		}

		o := NewOptionPosition(OptionPositionParams{
			Contract:        OptionContract{Underlying: "XYZ", Expiry: "2030-01-18", Strike: 100, Type: optionType},
			Quantity:        qty,
			UnderlyingPrice: rng.Float64()*500 + 1,
			UnderlyingBeta:  1,
			Delta:           delta,
		})

		economicLong := (isCall && !short) || (!isCall && short)
		if economicLong {
			assert.Greater(t, o.DeltaExposure, 0.0, "case %d: qty=%d type=%s", i, qty, optionType)
		} else {
			assert.Less(t, o.DeltaExposure, 0.0, "case %d: qty=%d type=%s", i, qty, optionType)
		}
	}
}

func TestOptionContract_ExpiryTime(t *testing.T) {
	c := OptionContract{Expiry: "2025-04-17"}
	ts, err := c.ExpiryTime()
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, 23, ts.Hour())

	_, err = OptionContract{Expiry: "April"}.ExpiryTime()
	assert.Error(t, err)
}

func TestParseOptionType(t *testing.T) {
	ot, err := ParseOptionType(" call ")
	require.NoError(t, err)
	assert.Equal(t, OptionTypeCall, ot)

	ot, err = ParseOptionType("PUT")
	require.NoError(t, err)
	assert.Equal(t, OptionTypePut, ot)

	_, err = ParseOptionType("STRADDLE")
	assert.Error(t, err)
}

func TestPortfolioGroup_Rollup(t *testing.T) {
	stock := NewStockPosition("AAPL", 100, 150, 1.2, 140)
	call := sampleCall(1, 0.5)
	put := NewOptionPosition(OptionPositionParams{
		Contract:        OptionContract{Underlying: "AAPL", Expiry: "2025-04-17", Strike: 140, Type: OptionTypePut},
		Quantity:        1,
		Price:           2,
		UnderlyingPrice: 150,
		UnderlyingBeta:  1.2,
		Delta:           -0.3,
	})

	g := NewPortfolioGroup("AAPL", &stock, []OptionPosition{call, put}, 1.2)

	assert.Equal(t, 1, g.CallCount)
	assert.Equal(t, 1, g.PutCount)
	assert.InDelta(t, 7500.0-4500.0, g.TotalDeltaExposure, 1e-9)
	assert.Equal(t, g.TotalDeltaExposure, g.OptionsDeltaExposure)
	assert.InDelta(t, 15000.0+3000.0, g.NetExposure, 1e-9)
	assert.InDelta(t, 18000.0+3000.0*1.2, g.BetaAdjustedExposure, 1e-9)
	assert.Equal(t, 1.2, g.Beta)

	only := g.WithOptions([]OptionPosition{call})
	assert.Equal(t, 1, only.CallCount)
	assert.Equal(t, 0, only.PutCount)
	assert.Equal(t, 1, g.PutCount, "original must be untouched")

	smaller := g.WithStock(NewStockPosition("AAPL", 50, 150, 1.2, 140))
	assert.InDelta(t, 7500.0+3000.0, smaller.NetExposure, 1e-9)
	assert.Len(t, smaller.OptionPositions, 2)
	assert.Equal(t, 100.0, g.StockPosition.Quantity, "original must be untouched")
}

func TestPortfolioGroup_OwnsPositions(t *testing.T) {
	stock := NewStockPosition("AAPL", 100, 150, 1.2, 140)
	options := []OptionPosition{sampleCall(1, 0.5)}
	g := NewPortfolioGroup("AAPL", &stock, options, 1.2)

	stock.Quantity = 1
	options[0].Quantity = 99

	assert.Equal(t, 100.0, g.StockPosition.Quantity)
	assert.Equal(t, 1, g.OptionPositions[0].Quantity)
}

func TestPortfolioGroup_NoStockUsesUnderlyingBeta(t *testing.T) {
	g := NewPortfolioGroup("SPY", nil, []OptionPosition{sampleCall(1, 0.4)}, 0.95)
	assert.Equal(t, 0.95, g.Beta)
	assert.Equal(t, 150.0, g.UnderlyingPrice())
}

func TestRoundTrip_StockPosition(t *testing.T) {
	p := NewStockPosition("MSFT", -25, 410.5, 0.9, 400)
	p.Description = "MICROSOFT CORP"

	back, err := StockPositionFromMap(p.ToMap())
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestRoundTrip_OptionPosition(t *testing.T) {
	o := sampleCall(-3, -0.42)
	back, err := OptionPositionFromMap(o.ToMap())
	require.NoError(t, err)
	assert.Equal(t, o, back)
}

func TestRoundTrip_PortfolioGroup(t *testing.T) {
	stock := NewStockPosition("AAPL", 100, 150, 1.2, 140)
	g := NewPortfolioGroup("AAPL", &stock, []OptionPosition{sampleCall(1, 0.5), sampleCall(-2, -0.5)}, 1.2)

	back, err := PortfolioGroupFromMap(g.ToMap())
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestRoundTrip_ExposureBreakdown(t *testing.T) {
	b, err := NewExposureBreakdown(ExposureSideShort, ExposureBreakdownParams{
		StockExposure:       -1000,
		StockBetaAdjusted:   -1500,
		OptionDeltaExposure: -250,
		OptionBetaAdjusted:  -300,
		Description:         "short",
		Formula:             "a + b",
		Components:          map[string]float64{"Short Stocks Value": -1000},
	})
	require.NoError(t, err)

	back, err := ExposureBreakdownFromMap(b.ToMap())
	require.NoError(t, err)
	assert.Equal(t, b, back)
}

func TestRoundTrip_PortfolioSummaryThroughJSON(t *testing.T) {
	long, err := NewExposureBreakdown(ExposureSideLong, ExposureBreakdownParams{StockExposure: 15000, StockBetaAdjusted: 18000, Components: map[string]float64{}})
	require.NoError(t, err)
	short, err := NewExposureBreakdown(ExposureSideShort, ExposureBreakdownParams{StockExposure: -500, StockBetaAdjusted: -600, Components: map[string]float64{}})
	require.NoError(t, err)
	options, err := NewExposureBreakdown(ExposureSideNet, ExposureBreakdownParams{OptionDeltaExposure: 250, OptionBetaAdjusted: 300, Components: map[string]float64{}})
	require.NoError(t, err)

	s := PortfolioSummary{
		NetMarketExposure:      14500,
		PortfolioBeta:          1.2,
		LongExposure:           long,
		ShortExposure:          short,
		OptionsExposure:        options,
		ShortPercentage:        500.0 / 15000.0 * 100,
		CashLikePositions:      []StockPosition{NewCashPosition("SPAXX", "MONEY MARKET", 0, 1000, 0)},
		CashLikeValue:          1000,
		CashLikeCount:          1,
		CashPercentage:         1000.0 / 15750.0 * 100,
		StockValue:             14500,
		OptionValue:            250,
		PendingActivityValue:   0,
		PortfolioEstimateValue: 15750,
		PriceUpdatedAt:         "2025-03-17T14:00:00Z",
		HelpText:               DefaultHelpText(),
	}

	raw, err := json.Marshal(s.ToMap())
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back, err := PortfolioSummaryFromMap(decoded)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestFromMap_MissingRequiredFields(t *testing.T) {
	_, err := StockPositionFromMap(map[string]interface{}{"quantity": 1, "price": 2})
	var mfe *MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "ticker", mfe.Field)

	_, err = StockPositionFromMap(map[string]interface{}{"ticker": "X", "price": 2})
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "quantity", mfe.Field)

	_, err = OptionPositionFromMap(map[string]interface{}{"ticker": "X", "quantity": 1, "strike": 10, "expiry": "2025-01-17"})
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "option_type", mfe.Field)

	_, err = PortfolioSummaryFromMap(map[string]interface{}{})
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "long_exposure", mfe.Field)
}

func TestFromMap_OptionalDefaults(t *testing.T) {
	p, err := StockPositionFromMap(map[string]interface{}{"ticker": "X", "quantity": 10, "price": 3.5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Beta)
	assert.Equal(t, 35.0, p.MarketValue)
	assert.Equal(t, 35.0, p.MarketExposure)
	assert.Equal(t, 3.5, p.CostBasis)

	s, err := PortfolioSummaryFromMap(map[string]interface{}{
		"long_exposure":    map[string]interface{}{"stock_exposure": 100.0},
		"short_exposure":   map[string]interface{}{"stock_exposure": -40.0},
		"options_exposure": map[string]interface{}{},
		"stock_value":      60.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, s.NetMarketExposure)
	assert.Equal(t, 60.0, s.PortfolioEstimateValue)
	assert.Empty(t, s.PriceUpdatedAt)
	assert.NotEmpty(t, s.HelpText)
}

func TestNewExposureBreakdown_SignConvention(t *testing.T) {
	_, err := NewExposureBreakdown(ExposureSideShort, ExposureBreakdownParams{StockExposure: 10})
	var sce *SignConventionError
	require.True(t, errors.As(err, &sce))
	assert.Equal(t, "stock_exposure", sce.Field)

	_, err = NewExposureBreakdown(ExposureSideLong, ExposureBreakdownParams{OptionDeltaExposure: -1})
	require.True(t, errors.As(err, &sce))

	_, err = NewExposureBreakdown(ExposureSideLong, ExposureBreakdownParams{StockExposure: 100, StockBetaAdjusted: -50})
	assert.NoError(t, err, "beta-adjusted values may flip with negative beta")

	b, err := NewExposureBreakdown(ExposureSideNet, ExposureBreakdownParams{StockExposure: -5, OptionDeltaExposure: 10})
	require.NoError(t, err)
	assert.Equal(t, 5.0, b.TotalExposure)
}

func TestIsCashLike(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		desc   string
		beta   float64
		want   bool
	}{
		{"core sweep marker", "SPAXX**", "", 1, true},
		{"known fund", "FDRXX", "", 1, true},
		{"description", "XYZ", "FIDELITY GOVT MONEY MARKET", 1, true},
		{"escrow", "ABC", "ESCROW SHARES", 1, true},
		{"low beta", "BIL", "SPDR 1-3 MONTH T-BILL", 0.05, true},
		{"negative low beta", "BIL", "", -0.1, true},
		{"stock", "AAPL", "APPLE INC", 1.2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCashLike(tt.symbol, tt.desc, tt.beta))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &FirstGroupError{Ticker: "AAPL", Err: NewDataError(3, "price", "abc", "not a number")}
	assert.Contains(t, err.Error(), "AAPL")
	var de *DataError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Row)

	se := &StructuralError{Reason: "invalid header", Missing: []string{"Symbol", "Type"}}
	assert.Contains(t, se.Error(), "Symbol, Type")

	ue := &UnresolvedUnderlyingError{Underlying: "SPY", Options: 3}
	assert.Contains(t, ue.Error(), "SPY")
}
