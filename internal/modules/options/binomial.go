package options

import (
	"math"
	"time"

	"github.com/aristath/exposure/internal/domain"
)

const (
	DefaultRiskFreeRate = 0.05
	DefaultVolatility   = 0.30
	DefaultTreeSteps    = 100
)

// BinomialPrice values an American option on a Cox-Ross-Rubinstein tree with
// the given number of steps. Delta is read from the first step of the tree.
// Degenerate inputs (expired, zero volatility, non-positive prices) return the
// intrinsic value and delta.
func BinomialPrice(isCall bool, S, K, T, r, sigma float64, steps int) (price, delta float64) {
	if degenerate(S, K, T, sigma) {
		return Intrinsic(isCall, S, K), intrinsicDelta(isCall, S, K)
	}
	if steps < 1 {
		steps = DefaultTreeSteps
	}

	dt := T / float64(steps)
	u := math.Exp(sigma * math.Sqrt(dt))
	d := 1 / u
	growth := math.Exp(r * dt)
	p := (growth - d) / (u - d)
	if p <= 0 || p >= 1 {
		// the tree is not arbitrage-free at this resolution
		return BlackScholesPrice(isCall, S, K, T, r, sigma), BlackScholesDelta(isCall, S, K, T, r, sigma)
	}
	disc := 1 / growth

	// values[j] holds the node with j up moves
	values := make([]float64, steps+1)
	for j := 0; j <= steps; j++ {
		spot := S * math.Pow(u, float64(j)) * math.Pow(d, float64(steps-j))
		values[j] = Intrinsic(isCall, spot, K)
	}

	var up, down float64
	for step := steps - 1; step >= 0; step-- {
		for j := 0; j <= step; j++ {
			cont := disc * (p*values[j+1] + (1-p)*values[j])
			spot := S * math.Pow(u, float64(j)) * math.Pow(d, float64(step-j))
			values[j] = math.Max(cont, Intrinsic(isCall, spot, K))
		}
		if step == 1 {
			down, up = values[0], values[1]
		}
	}

	price = values[0]
	if steps == 1 {
		// step 1 is the leaf layer
		down = Intrinsic(isCall, S*d, K)
		up = Intrinsic(isCall, S*u, K)
	}
	delta = (up - down) / (S*u - S*d)
	return price, clampDelta(isCall, delta)
}

func clampDelta(isCall bool, delta float64) float64 {
	if isCall {
		return math.Min(1, math.Max(0, delta))
	}
	return math.Min(0, math.Max(-1, delta))
}

// signed negates a delta for short positions so it carries the direction of
// the holding.
func signed(delta float64, quantity int) float64 {
	if quantity < 0 {
		return -delta
	}
	return delta
}

// PriceAndDelta prices one option position on a DefaultTreeSteps binomial tree.
// The returned delta is negated when quantity is negative.
func PriceAndDelta(c domain.OptionContract, quantity int, underlyingPrice, riskFreeRate, volatility float64, now time.Time) (float64, float64) {
	T := YearsToExpiry(c, now)
	price, delta := BinomialPrice(c.IsCall(), underlyingPrice, c.Strike, T, riskFreeRate, volatility, DefaultTreeSteps)
	return price, signed(delta, quantity)
}
