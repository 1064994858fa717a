package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/exposure/internal/domain"
)

// Method selects a delta calculator.
type Method string

const (
	MethodBinomial     Method = "binomial"
	MethodBlackScholes Method = "black_scholes"
	MethodSimple       Method = "simple"
)

// ParseMethod accepts a configured method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodBinomial, MethodBlackScholes, MethodSimple:
		return m, nil
	case "":
		return MethodBinomial, nil
	}
	return "", fmt.Errorf("unknown delta method %q", s)
}

// Valuation is a theoretical premium per share and a position-signed delta.
type Valuation struct {
	Price float64
	Delta float64
}

// DeltaCalculator values one option position at a given underlying price.
type DeltaCalculator interface {
	Evaluate(c domain.OptionContract, quantity int, underlyingPrice, volatility float64) Valuation
	Method() Method
}

// Config holds the pricing parameters shared by every calculator.
type Config struct {
	Method       Method
	RiskFreeRate float64
	Steps        int
	Now          func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// NewCalculator returns the calculator selected by cfg.Method.
func NewCalculator(cfg Config) (DeltaCalculator, error) {
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultTreeSteps
	}
	switch cfg.Method {
	case MethodBinomial, "":
		return &BinomialCalculator{cfg: cfg}, nil
	case MethodBlackScholes:
		return &BlackScholesCalculator{cfg: cfg}, nil
	case MethodSimple:
		return &SimpleCalculator{cfg: cfg}, nil
	}
	return nil, fmt.Errorf("unknown delta method %q", cfg.Method)
}

// BinomialCalculator prices on an American CRR tree. Expired contracts and
// non-positive volatilities fall back to the moneyness delta.
type BinomialCalculator struct {
	cfg Config
}

func (b *BinomialCalculator) Method() Method { return MethodBinomial }

func (b *BinomialCalculator) Evaluate(c domain.OptionContract, quantity int, underlyingPrice, volatility float64) Valuation {
	T := YearsToExpiry(c, b.cfg.now())
	if T <= 0 || volatility <= 0 {
		return Valuation{
			Price: BlackScholesPrice(c.IsCall(), underlyingPrice, c.Strike, T, b.cfg.RiskFreeRate, volatility),
			Delta: SimpleDelta(c, quantity, underlyingPrice),
		}
	}
	price, delta := BinomialPrice(c.IsCall(), underlyingPrice, c.Strike, T, b.cfg.RiskFreeRate, volatility, b.cfg.Steps)
	return Valuation{Price: price, Delta: signed(delta, quantity)}
}

// BlackScholesCalculator uses the European closed form.
type BlackScholesCalculator struct {
	cfg Config
}

func (b *BlackScholesCalculator) Method() Method { return MethodBlackScholes }

func (b *BlackScholesCalculator) Evaluate(c domain.OptionContract, quantity int, underlyingPrice, volatility float64) Valuation {
	T := YearsToExpiry(c, b.cfg.now())
	return Valuation{
		Price: BlackScholesPrice(c.IsCall(), underlyingPrice, c.Strike, T, b.cfg.RiskFreeRate, volatility),
		Delta: signed(BlackScholesDelta(c.IsCall(), underlyingPrice, c.Strike, T, b.cfg.RiskFreeRate, volatility), quantity),
	}
}

// SimpleCalculator uses the moneyness delta. Prices still come from the
// closed form so simulations can reprice.
type SimpleCalculator struct {
	cfg Config
}

func (s *SimpleCalculator) Method() Method { return MethodSimple }

func (s *SimpleCalculator) Evaluate(c domain.OptionContract, quantity int, underlyingPrice, volatility float64) Valuation {
	T := YearsToExpiry(c, s.cfg.now())
	return Valuation{
		Price: BlackScholesPrice(c.IsCall(), underlyingPrice, c.Strike, T, s.cfg.RiskFreeRate, volatility),
		Delta: SimpleDelta(c, quantity, underlyingPrice),
	}
}
