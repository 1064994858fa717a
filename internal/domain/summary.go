package domain

import "fmt"

// PortfolioSummary is the portfolio-level rollup. It is rebuilt from scratch
// on every load, refresh and simulation step.
type PortfolioSummary struct {
	NetMarketExposure      float64           `json:"net_market_exposure"`
	PortfolioBeta          float64           `json:"portfolio_beta"`
	LongExposure           ExposureBreakdown `json:"long_exposure"`
	ShortExposure          ExposureBreakdown `json:"short_exposure"`
	OptionsExposure        ExposureBreakdown `json:"options_exposure"`
	ShortPercentage        float64           `json:"short_percentage"`
	CashLikePositions      []StockPosition   `json:"cash_like_positions"`
	CashLikeValue          float64           `json:"cash_like_value"`
	CashLikeCount          int               `json:"cash_like_count"`
	CashPercentage         float64           `json:"cash_percentage"`
	StockValue             float64           `json:"stock_value"`
	OptionValue            float64           `json:"option_value"`
	PendingActivityValue   float64           `json:"pending_activity_value"`
	PortfolioEstimateValue float64           `json:"portfolio_estimate_value"`
	PriceUpdatedAt         string            `json:"price_updated_at,omitempty"` // RFC3339, empty when unknown
	HelpText               map[string]string `json:"help_text"`
}

// DefaultHelpText returns the metric descriptions attached to every summary.
func DefaultHelpText() map[string]string {
	return map[string]string{
		"net_market_exposure":      "Long exposure plus short exposure. Short values are negative, so this is the true net.",
		"portfolio_beta":           "Net beta-adjusted exposure divided by net market exposure.",
		"long_exposure":            "Long stock value and long option value with their beta-adjusted equivalents.",
		"short_exposure":           "Short stock value and short option value, reported as negative numbers.",
		"options_exposure":         "Net view of every option position regardless of direction.",
		"short_percentage":         "Absolute short exposure as a percentage of long exposure.",
		"cash_like_value":          "Money market funds, escrow shares and other near-zero beta holdings.",
		"cash_percentage":          "Cash-like value as a percentage of the portfolio estimate.",
		"pending_activity_value":   "Unsettled broker activity reported on the Pending Activity row.",
		"portfolio_estimate_value": "Stock value plus option value plus cash-like value plus pending activity.",
		"delta_exposure":           "Option delta times notional value, where notional is contracts x 100 x underlying price.",
		"beta_adjusted_exposure":   "Exposure scaled by beta against the market benchmark.",
	}
}

// ToMap converts the summary to a plain mapping. An unknown price timestamp
// is emitted as nil.
func (s PortfolioSummary) ToMap() map[string]interface{} {
	cash := make([]map[string]interface{}, 0, len(s.CashLikePositions))
	for _, p := range s.CashLikePositions {
		cash = append(cash, p.ToMap())
	}
	help := make(map[string]interface{}, len(s.HelpText))
	for k, v := range s.HelpText {
		help[k] = v
	}

	var updated interface{}
	if s.PriceUpdatedAt != "" {
		updated = s.PriceUpdatedAt
	}

	return map[string]interface{}{
		"net_market_exposure":      s.NetMarketExposure,
		"portfolio_beta":           s.PortfolioBeta,
		"long_exposure":            s.LongExposure.ToMap(),
		"short_exposure":           s.ShortExposure.ToMap(),
		"options_exposure":         s.OptionsExposure.ToMap(),
		"short_percentage":         s.ShortPercentage,
		"cash_like_positions":      cash,
		"cash_like_value":          s.CashLikeValue,
		"cash_like_count":          s.CashLikeCount,
		"cash_percentage":          s.CashPercentage,
		"stock_value":              s.StockValue,
		"option_value":             s.OptionValue,
		"pending_activity_value":   s.PendingActivityValue,
		"portfolio_estimate_value": s.PortfolioEstimateValue,
		"price_updated_at":         updated,
		"help_text":                help,
	}
}

// PortfolioSummaryFromMap rebuilds a summary. The three exposure breakdowns
// are required. Missing totals are re-derived: net exposure from the
// breakdowns, cash value and count from the cash list, and the estimate
// from its parts.
func PortfolioSummaryFromMap(m map[string]interface{}) (PortfolioSummary, error) {
	const entity = "portfolio_summary"

	breakdowns := make(map[string]ExposureBreakdown, 3)
	for _, key := range []string{"long_exposure", "short_exposure", "options_exposure"} {
		bm, ok := optionalMap(m, key)
		if !ok {
			return PortfolioSummary{}, &MissingFieldError{Entity: entity, Field: key}
		}
		b, err := ExposureBreakdownFromMap(bm)
		if err != nil {
			return PortfolioSummary{}, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		breakdowns[key] = b
	}

	s := PortfolioSummary{
		LongExposure:    breakdowns["long_exposure"],
		ShortExposure:   breakdowns["short_exposure"],
		OptionsExposure: breakdowns["options_exposure"],
		PriceUpdatedAt:  optionalString(m, "price_updated_at"),
	}

	s.CashLikePositions = []StockPosition{}
	if list, ok := mapList(m, "cash_like_positions"); ok {
		for i, pm := range list {
			p, err := StockPositionFromMap(pm)
			if err != nil {
				return PortfolioSummary{}, fmt.Errorf("failed to decode cash position %d: %w", i, err)
			}
			s.CashLikePositions = append(s.CashLikePositions, p)
		}
	}

	cashValue := 0.0
	for _, p := range s.CashLikePositions {
		cashValue += p.MarketValue
	}

	s.NetMarketExposure = optionalFloat(m, "net_market_exposure", s.LongExposure.TotalExposure+s.ShortExposure.TotalExposure)
	s.PortfolioBeta = optionalFloat(m, "portfolio_beta", 0)
	s.ShortPercentage = optionalFloat(m, "short_percentage", 0)
	s.CashLikeValue = optionalFloat(m, "cash_like_value", cashValue)
	s.CashLikeCount = optionalInt(m, "cash_like_count", len(s.CashLikePositions))
	s.StockValue = optionalFloat(m, "stock_value", 0)
	s.OptionValue = optionalFloat(m, "option_value", 0)
	s.PendingActivityValue = optionalFloat(m, "pending_activity_value", 0)
	s.PortfolioEstimateValue = optionalFloat(m, "portfolio_estimate_value",
		s.StockValue+s.OptionValue+s.CashLikeValue+s.PendingActivityValue)
	s.CashPercentage = optionalFloat(m, "cash_percentage", 0)

	s.HelpText = stringMap(m, "help_text")
	if s.HelpText == nil {
		s.HelpText = DefaultHelpText()
	}
	return s, nil
}
