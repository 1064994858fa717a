package domain

import "fmt"

// PortfolioGroup is one underlying together with its options. The group owns
// its stock position and option slice; derived aggregates are only set by
// NewPortfolioGroup so they never drift from the positions.
type PortfolioGroup struct {
	Ticker               string           `json:"ticker"`
	StockPosition        *StockPosition   `json:"stock_position,omitempty"`
	OptionPositions      []OptionPosition `json:"option_positions"`
	NetExposure          float64          `json:"net_exposure"`
	Beta                 float64          `json:"beta"`
	BetaAdjustedExposure float64          `json:"beta_adjusted_exposure"`
	TotalDeltaExposure   float64          `json:"total_delta_exposure"`
	OptionsDeltaExposure float64          `json:"options_delta_exposure"`
	CallCount            int              `json:"call_count"`
	PutCount             int              `json:"put_count"`
}

// NewPortfolioGroup builds a group and derives every aggregate. underlyingBeta
// is used when there is no stock position.
func NewPortfolioGroup(ticker string, stock *StockPosition, options []OptionPosition, underlyingBeta float64) PortfolioGroup {
	g := PortfolioGroup{
		Ticker: ticker,
		Beta:   underlyingBeta,
	}
	if stock != nil {
		s := *stock
		g.StockPosition = &s
		g.Beta = s.Beta
	}
	g.OptionPositions = make([]OptionPosition, len(options))
	copy(g.OptionPositions, options)
	g.rollup()
	return g
}

func (g *PortfolioGroup) rollup() {
	g.NetExposure = 0
	g.BetaAdjustedExposure = 0
	g.TotalDeltaExposure = 0
	g.CallCount = 0
	g.PutCount = 0

	if g.StockPosition != nil {
		g.NetExposure = g.StockPosition.MarketExposure
		g.BetaAdjustedExposure = g.StockPosition.BetaAdjustedExposure
	}
	for _, o := range g.OptionPositions {
		g.TotalDeltaExposure += o.DeltaExposure
		g.BetaAdjustedExposure += o.BetaAdjustedExposure
		switch o.OptionType {
		case OptionTypeCall:
			g.CallCount++
		case OptionTypePut:
			g.PutCount++
		}
	}
	g.OptionsDeltaExposure = g.TotalDeltaExposure
	g.NetExposure += g.TotalDeltaExposure
}

// WithOptions returns a copy holding options, with counts and totals re-derived.
func (g PortfolioGroup) WithOptions(options []OptionPosition) PortfolioGroup {
	return NewPortfolioGroup(g.Ticker, g.StockPosition, options, g.Beta)
}

// WithStock returns a copy holding stock.
func (g PortfolioGroup) WithStock(stock StockPosition) PortfolioGroup {
	return NewPortfolioGroup(g.Ticker, &stock, g.OptionPositions, g.Beta)
}

// Clone returns a deep copy.
func (g PortfolioGroup) Clone() PortfolioGroup {
	return NewPortfolioGroup(g.Ticker, g.StockPosition, g.OptionPositions, g.Beta)
}

// UnderlyingPrice returns the stock price, or the first option's underlying
// price for groups without a priced stock.
func (g PortfolioGroup) UnderlyingPrice() float64 {
	if g.StockPosition != nil && g.StockPosition.Price > 0 {
		return g.StockPosition.Price
	}
	for _, o := range g.OptionPositions {
		if o.UnderlyingPrice > 0 {
			return o.UnderlyingPrice
		}
	}
	return 0
}

// MarketValue is the stock market value plus every option's market value.
func (g PortfolioGroup) MarketValue() float64 {
	total := 0.0
	if g.StockPosition != nil {
		total += g.StockPosition.MarketValue
	}
	for _, o := range g.OptionPositions {
		total += o.MarketValue
	}
	return total
}

// ToMap converts the group to a plain mapping.
func (g PortfolioGroup) ToMap() map[string]interface{} {
	options := make([]map[string]interface{}, 0, len(g.OptionPositions))
	for _, o := range g.OptionPositions {
		options = append(options, o.ToMap())
	}

	m := map[string]interface{}{
		"ticker":                 g.Ticker,
		"option_positions":       options,
		"net_exposure":           g.NetExposure,
		"beta":                   g.Beta,
		"beta_adjusted_exposure": g.BetaAdjustedExposure,
		"total_delta_exposure":   g.TotalDeltaExposure,
		"options_delta_exposure": g.OptionsDeltaExposure,
		"call_count":             g.CallCount,
		"put_count":              g.PutCount,
	}
	if g.StockPosition != nil {
		m["stock_position"] = g.StockPosition.ToMap()
	} else {
		m["stock_position"] = nil
	}
	return m
}

// PortfolioGroupFromMap rebuilds a group. ticker is required; the aggregates
// are re-derived from the positions so a stale mapping cannot desynchronize them.
func PortfolioGroupFromMap(m map[string]interface{}) (PortfolioGroup, error) {
	const entity = "portfolio_group"

	ticker, err := requireString(m, entity, "ticker")
	if err != nil {
		return PortfolioGroup{}, err
	}

	var stock *StockPosition
	if sm, ok := optionalMap(m, "stock_position"); ok {
		s, err := StockPositionFromMap(sm)
		if err != nil {
			return PortfolioGroup{}, fmt.Errorf("failed to decode stock position of %s: %w", ticker, err)
		}
		stock = &s
	}

	var options []OptionPosition
	if list, ok := mapList(m, "option_positions"); ok {
		options = make([]OptionPosition, 0, len(list))
		for i, om := range list {
			o, err := OptionPositionFromMap(om)
			if err != nil {
				return PortfolioGroup{}, fmt.Errorf("failed to decode option %d of %s: %w", i, ticker, err)
			}
			options = append(options, o)
		}
	}

	return NewPortfolioGroup(ticker, stock, options, optionalFloat(m, "beta", 1.0)), nil
}
