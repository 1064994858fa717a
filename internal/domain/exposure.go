package domain

// ExposureSide identifies which bucket a breakdown describes.
type ExposureSide string

const (
	ExposureSideLong  ExposureSide = "long"
	ExposureSideShort ExposureSide = "short"
	// ExposureSideNet mixes long and short values and carries no sign rule.
	ExposureSideNet ExposureSide = "net"
)

// ExposureBreakdown is a stock/option decomposition of one exposure bucket.
// Short buckets hold negative values.
type ExposureBreakdown struct {
	StockExposure       float64            `json:"stock_exposure"`
	StockBetaAdjusted   float64            `json:"stock_beta_adjusted"`
	OptionDeltaExposure float64            `json:"option_delta_exposure"`
	OptionBetaAdjusted  float64            `json:"option_beta_adjusted"`
	TotalExposure       float64            `json:"total_exposure"`
	TotalBetaAdjusted   float64            `json:"total_beta_adjusted"`
	Description         string             `json:"description"`
	Formula             string             `json:"formula"`
	Components          map[string]float64 `json:"components"`
}

// ExposureBreakdownParams carries the inputs of NewExposureBreakdown. Totals
// are always derived.
type ExposureBreakdownParams struct {
	StockExposure       float64
	StockBetaAdjusted   float64
	OptionDeltaExposure float64
	OptionBetaAdjusted  float64
	Description         string
	Formula             string
	Components          map[string]float64
}

// NewExposureBreakdown builds a breakdown and enforces the sign convention of
// side on the exposure fields: long values must be >= 0 and short values <= 0.
// Beta-adjusted fields are exempt since a negative beta legitimately flips them.
func NewExposureBreakdown(side ExposureSide, p ExposureBreakdownParams) (ExposureBreakdown, error) {
	b := ExposureBreakdown{
		StockExposure:       p.StockExposure,
		StockBetaAdjusted:   p.StockBetaAdjusted,
		OptionDeltaExposure: p.OptionDeltaExposure,
		OptionBetaAdjusted:  p.OptionBetaAdjusted,
		TotalExposure:       p.StockExposure + p.OptionDeltaExposure,
		TotalBetaAdjusted:   p.StockBetaAdjusted + p.OptionBetaAdjusted,
		Description:         p.Description,
		Formula:             p.Formula,
		Components:          make(map[string]float64, len(p.Components)),
	}
	for k, v := range p.Components {
		b.Components[k] = v
	}

	if err := checkSign(side, b); err != nil {
		return ExposureBreakdown{}, err
	}
	return b, nil
}

func checkSign(side ExposureSide, b ExposureBreakdown) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"stock_exposure", b.StockExposure},
		{"option_delta_exposure", b.OptionDeltaExposure},
		{"total_exposure", b.TotalExposure},
	}

	for _, f := range fields {
		switch side {
		case ExposureSideLong:
			if f.value < 0 {
				return &SignConventionError{Side: side, Field: f.name, Value: f.value}
			}
		case ExposureSideShort:
			if f.value > 0 {
				return &SignConventionError{Side: side, Field: f.name, Value: f.value}
			}
		}
	}
	return nil
}

// Validate re-checks the sign convention, for breakdowns decoded from mappings.
func (b ExposureBreakdown) Validate(side ExposureSide) error {
	return checkSign(side, b)
}

// ToMap converts the breakdown to a plain mapping.
func (b ExposureBreakdown) ToMap() map[string]interface{} {
	components := make(map[string]interface{}, len(b.Components))
	for k, v := range b.Components {
		components[k] = v
	}
	return map[string]interface{}{
		"stock_exposure":        b.StockExposure,
		"stock_beta_adjusted":   b.StockBetaAdjusted,
		"option_delta_exposure": b.OptionDeltaExposure,
		"option_beta_adjusted":  b.OptionBetaAdjusted,
		"total_exposure":        b.TotalExposure,
		"total_beta_adjusted":   b.TotalBetaAdjusted,
		"description":           b.Description,
		"formula":               b.Formula,
		"components":            components,
	}
}

// ExposureBreakdownFromMap rebuilds a breakdown. Every field is optional:
// missing parts default to 0 and missing totals are re-derived from the parts.
func ExposureBreakdownFromMap(m map[string]interface{}) (ExposureBreakdown, error) {
	if m == nil {
		return ExposureBreakdown{}, &MissingFieldError{Entity: "exposure_breakdown", Field: "stock_exposure"}
	}
	b := ExposureBreakdown{
		StockExposure:       optionalFloat(m, "stock_exposure", 0),
		StockBetaAdjusted:   optionalFloat(m, "stock_beta_adjusted", 0),
		OptionDeltaExposure: optionalFloat(m, "option_delta_exposure", 0),
		OptionBetaAdjusted:  optionalFloat(m, "option_beta_adjusted", 0),
		Description:         optionalString(m, "description"),
		Formula:             optionalString(m, "formula"),
		Components:          floatMap(m, "components"),
	}
	b.TotalExposure = optionalFloat(m, "total_exposure", b.StockExposure+b.OptionDeltaExposure)
	b.TotalBetaAdjusted = optionalFloat(m, "total_beta_adjusted", b.StockBetaAdjusted+b.OptionBetaAdjusted)
	return b, nil
}
