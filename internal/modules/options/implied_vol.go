package options

import (
	"math"
	"time"

	"github.com/aristath/exposure/internal/domain"
)

const (
	ivLowerBound     = 0.001
	ivUpperBound     = 5.0
	ivPriceTolerance = 1e-4
	ivMaxIterations  = 100
)

// ImpliedVolatility solves for the volatility at which the binomial price of c
// matches targetPrice, by bisection over [0.001, 5.0]. When the search does not
// reach the tolerance it returns the closest volatility seen rather than failing.
func ImpliedVolatility(c domain.OptionContract, underlyingPrice, targetPrice, riskFreeRate float64, now time.Time) float64 {
	T := YearsToExpiry(c, now)
	isCall := c.IsCall()

	priceAt := func(vol float64) float64 {
		p, _ := BinomialPrice(isCall, underlyingPrice, c.Strike, T, riskFreeRate, vol, DefaultTreeSteps)
		return p
	}

	lo, hi := ivLowerBound, ivUpperBound
	best, bestErr := DefaultVolatility, math.Inf(1)

	for i := 0; i < ivMaxIterations; i++ {
		mid := (lo + hi) / 2
		diff := priceAt(mid) - targetPrice

		if math.Abs(diff) < bestErr {
			best, bestErr = mid, math.Abs(diff)
		}
		if math.Abs(diff) < ivPriceTolerance {
			return mid
		}

		if diff > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return best
}
