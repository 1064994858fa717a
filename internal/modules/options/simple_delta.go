package options

import "github.com/aristath/exposure/internal/domain"

const (
	simpleDeltaITM       = 0.95
	simpleDeltaOTM       = 0.05
	simpleDeltaThreshold = 0.10
)

// SimpleDelta estimates delta from moneyness alone. A call 10% or more in the
// money gets 0.95, 10% or more out of the money gets 0.05, and values in
// between are interpolated linearly. Puts mirror calls with negative values.
// The result is negated for short positions.
func SimpleDelta(c domain.OptionContract, quantity int, underlyingPrice float64) float64 {
	if c.Strike <= 0 || underlyingPrice <= 0 {
		return 0
	}

	moneyness := (underlyingPrice - c.Strike) / c.Strike
	if !c.IsCall() {
		moneyness = -moneyness
	}

	var magnitude float64
	switch {
	case moneyness >= simpleDeltaThreshold:
		magnitude = simpleDeltaITM
	case moneyness <= -simpleDeltaThreshold:
		magnitude = simpleDeltaOTM
	default:
		frac := (moneyness + simpleDeltaThreshold) / (2 * simpleDeltaThreshold)
		magnitude = simpleDeltaOTM + frac*(simpleDeltaITM-simpleDeltaOTM)
	}

	if !c.IsCall() {
		magnitude = -magnitude
	}
	return signed(magnitude, quantity)
}
