// Package options prices listed equity options and computes their deltas.
package options

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/exposure/internal/domain"
)

const daysPerYear = 365.0

// YearsToExpiry returns the time from now to the end of the expiry day in
// years of 365 days. Expired or unparsable contracts return 0.
func YearsToExpiry(c domain.OptionContract, now time.Time) float64 {
	expiry, err := c.ExpiryTime()
	if err != nil {
		return 0
	}
	remaining := expiry.Sub(now.UTC())
	if remaining <= 0 {
		return 0
	}
	return remaining.Hours() / 24 / daysPerYear
}

// Intrinsic returns the exercise value of an option.
func Intrinsic(isCall bool, S, K float64) float64 {
	if isCall {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

// intrinsicDelta is the delta of an option at expiry.
func intrinsicDelta(isCall bool, S, K float64) float64 {
	if isCall {
		if S > K {
			return 1
		}
		return 0
	}
	if S < K {
		return -1
	}
	return 0
}

func degenerate(S, K, T, sigma float64) bool {
	return T <= 0 || sigma <= 0 || S <= 0 || K <= 0
}

func d1d2(S, K, T, r, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

// BlackScholesPrice calculates the price of a European option.
// If time to expiry or volatility is not positive, it returns intrinsic value.
func BlackScholesPrice(isCall bool, S, K, T, r, sigma float64) float64 {
	if degenerate(S, K, T, sigma) {
		return Intrinsic(isCall, S, K)
	}

	d1, d2 := d1d2(S, K, T, r, sigma)
	n := distuv.UnitNormal
	if isCall {
		return S*n.CDF(d1) - K*math.Exp(-r*T)*n.CDF(d2)
	}
	return K*math.Exp(-r*T)*n.CDF(-d2) - S*n.CDF(-d1)
}

// BlackScholesDelta calculates the European delta: N(d1) for calls and
// N(d1)-1 for puts.
func BlackScholesDelta(isCall bool, S, K, T, r, sigma float64) float64 {
	if degenerate(S, K, T, sigma) {
		return intrinsicDelta(isCall, S, K)
	}

	d1, _ := d1d2(S, K, T, r, sigma)
	if isCall {
		return distuv.UnitNormal.CDF(d1)
	}
	return distuv.UnitNormal.CDF(d1) - 1
}
