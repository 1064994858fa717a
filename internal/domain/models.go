// Package domain provides the position and exposure value objects shared by
// every module, together with their mapping round-trip.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ContractMultiplier is the number of underlying shares controlled by one
// listed equity option contract.
const ContractMultiplier = 100

// ExpiryLayout is the date layout used for option expiries.
const ExpiryLayout = "2006-01-02"

// OptionType is CALL or PUT
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// ParseOptionType accepts CALL/PUT in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch OptionType(strings.ToUpper(strings.TrimSpace(s))) {
	case OptionTypeCall:
		return OptionTypeCall, nil
	case OptionTypePut:
		return OptionTypePut, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// OptionContract identifies a listed option independent of any holding.
type OptionContract struct {
	Underlying string     `json:"underlying"`
	Expiry     string     `json:"expiry"` // YYYY-MM-DD
	Strike     float64    `json:"strike"`
	Type       OptionType `json:"option_type"`
}

// ExpiryTime returns the end of the expiry day in UTC.
func (c OptionContract) ExpiryTime() (time.Time, error) {
	d, err := time.Parse(ExpiryLayout, c.Expiry)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: %w", c.Expiry, err)
	}
	return d.Add(24*time.Hour - time.Second), nil
}

// IsCall reports whether the contract is a call.
func (c OptionContract) IsCall() bool {
	return c.Type == OptionTypeCall
}

// StockPosition is a stock (or cash-like) holding. Quantity is negative for
// shorts. Money market rows carry fractional quantities, so it is a float.
type StockPosition struct {
	Ticker               string  `json:"ticker"`
	Description          string  `json:"description,omitempty"`
	Quantity             float64 `json:"quantity"`
	Price                float64 `json:"price"`
	CostBasis            float64 `json:"cost_basis"`
	Beta                 float64 `json:"beta"`
	MarketExposure       float64 `json:"market_exposure"`
	BetaAdjustedExposure float64 `json:"beta_adjusted_exposure"`
	MarketValue          float64 `json:"market_value"`
}

// NewStockPosition builds a stock position with every derived field computed.
func NewStockPosition(ticker string, quantity, price, beta, costBasis float64) StockPosition {
	p := StockPosition{
		Ticker:    ticker,
		Quantity:  quantity,
		Price:     price,
		Beta:      beta,
		CostBasis: costBasis,
	}
	p.recompute()
	return p
}

// NewCashPosition builds a cash-like position from a broker market value.
// Rows without a quantity are treated as one unit per dollar.
func NewCashPosition(ticker, description string, quantity, marketValue, beta float64) StockPosition {
	price := 1.0
	if quantity == 0 {
		quantity = marketValue
	} else {
		price = marketValue / quantity
	}
	p := NewStockPosition(ticker, quantity, price, beta, price)
	p.Description = description
	p.MarketExposure = marketValue
	p.MarketValue = marketValue
	p.BetaAdjustedExposure = marketValue * beta
	return p
}

func (p *StockPosition) recompute() {
	p.MarketExposure = p.Quantity * p.Price
	p.BetaAdjustedExposure = p.MarketExposure * p.Beta
	p.MarketValue = p.MarketExposure
}

// WithPrice returns a copy repriced at price.
func (p StockPosition) WithPrice(price float64) StockPosition {
	p.Price = price
	p.recompute()
	return p
}

// WithQuantity returns a copy holding quantity shares.
func (p StockPosition) WithQuantity(quantity float64) StockPosition {
	p.Quantity = quantity
	p.recompute()
	return p
}

// IsShort reports a negative quantity.
func (p StockPosition) IsShort() bool {
	return p.Quantity < 0
}

// ToMap converts the position to a plain mapping.
func (p StockPosition) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"ticker":                 p.Ticker,
		"description":            p.Description,
		"quantity":               p.Quantity,
		"price":                  p.Price,
		"cost_basis":             p.CostBasis,
		"beta":                   p.Beta,
		"market_exposure":        p.MarketExposure,
		"beta_adjusted_exposure": p.BetaAdjustedExposure,
		"market_value":           p.MarketValue,
	}
}

// StockPositionFromMap rebuilds a position from ToMap output. ticker, quantity
// and price are required; beta defaults to 1.0, cost_basis to price, and the
// exposures and market_value are recomputed when missing.
func StockPositionFromMap(m map[string]interface{}) (StockPosition, error) {
	const entity = "stock_position"

	ticker, err := requireString(m, entity, "ticker")
	if err != nil {
		return StockPosition{}, err
	}
	quantity, err := requireFloat(m, entity, "quantity")
	if err != nil {
		return StockPosition{}, err
	}
	price, err := requireFloat(m, entity, "price")
	if err != nil {
		return StockPosition{}, err
	}

	p := StockPosition{
		Ticker:      ticker,
		Description: optionalString(m, "description"),
		Quantity:    quantity,
		Price:       price,
		Beta:        optionalFloat(m, "beta", 1.0),
		CostBasis:   optionalFloat(m, "cost_basis", price),
	}
	p.MarketExposure = optionalFloat(m, "market_exposure", p.Quantity*p.Price)
	p.BetaAdjustedExposure = optionalFloat(m, "beta_adjusted_exposure", p.MarketExposure*p.Beta)
	p.MarketValue = optionalFloat(m, "market_value", p.MarketExposure)
	return p, nil
}

// OptionPosition is a holding of option contracts on Ticker. Delta is already
// sign-adjusted for the position direction (negated for shorts), so
// DeltaExposure = Delta × NotionalValue carries the economic direction.
type OptionPosition struct {
	Ticker               string     `json:"ticker"`
	Description          string     `json:"description"`
	Quantity             int        `json:"quantity"`
	Strike               float64    `json:"strike"`
	Expiry               string     `json:"expiry"`
	OptionType           OptionType `json:"option_type"`
	Delta                float64    `json:"delta"`
	DeltaExposure        float64    `json:"delta_exposure"`
	NotionalValue        float64    `json:"notional_value"`
	UnderlyingBeta       float64    `json:"underlying_beta"`
	BetaAdjustedExposure float64    `json:"beta_adjusted_exposure"`
	Price                float64    `json:"price"`
	CostBasis            float64    `json:"cost_basis"`
	MarketValue          float64    `json:"market_value"`
	UnderlyingPrice      float64    `json:"underlying_price"`
	Volatility           float64    `json:"volatility"`
}

// OptionPositionParams carries the inputs of NewOptionPosition.
type OptionPositionParams struct {
	Contract        OptionContract
	Description     string
	Quantity        int
	Price           float64
	CostBasis       float64
	UnderlyingPrice float64
	UnderlyingBeta  float64
	Delta           float64
	Volatility      float64
}

// NewOptionPosition builds an option position with every derived field computed.
// Notional uses the underlying price, not the strike.
func NewOptionPosition(p OptionPositionParams) OptionPosition {
	o := OptionPosition{
		Ticker:          p.Contract.Underlying,
		Description:     p.Description,
		Quantity:        p.Quantity,
		Strike:          p.Contract.Strike,
		Expiry:          p.Contract.Expiry,
		OptionType:      p.Contract.Type,
		Delta:           p.Delta,
		UnderlyingBeta:  p.UnderlyingBeta,
		Price:           p.Price,
		CostBasis:       p.CostBasis,
		UnderlyingPrice: p.UnderlyingPrice,
		Volatility:      p.Volatility,
	}
	o.recompute()
	return o
}

func (o *OptionPosition) recompute() {
	o.NotionalValue = math.Abs(float64(o.Quantity)) * ContractMultiplier * o.UnderlyingPrice
	o.DeltaExposure = o.Delta * o.NotionalValue
	o.BetaAdjustedExposure = o.DeltaExposure * o.UnderlyingBeta
	o.MarketValue = o.Price * float64(o.Quantity) * ContractMultiplier
}

// Contract returns the contract identity of the position.
func (o OptionPosition) Contract() OptionContract {
	return OptionContract{
		Underlying: o.Ticker,
		Expiry:     o.Expiry,
		Strike:     o.Strike,
		Type:       o.OptionType,
	}
}

// Revalue returns a copy with a new underlying price, premium and delta.
func (o OptionPosition) Revalue(underlyingPrice, price, delta float64) OptionPosition {
	o.UnderlyingPrice = underlyingPrice
	o.Price = price
	o.Delta = delta
	o.recompute()
	return o
}

// IsShort reports a negative contract count.
func (o OptionPosition) IsShort() bool {
	return o.Quantity < 0
}

// ToMap converts the position to a plain mapping.
func (o OptionPosition) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"ticker":                 o.Ticker,
		"description":            o.Description,
		"quantity":               o.Quantity,
		"strike":                 o.Strike,
		"expiry":                 o.Expiry,
		"option_type":            string(o.OptionType),
		"delta":                  o.Delta,
		"delta_exposure":         o.DeltaExposure,
		"notional_value":         o.NotionalValue,
		"underlying_beta":        o.UnderlyingBeta,
		"beta_adjusted_exposure": o.BetaAdjustedExposure,
		"price":                  o.Price,
		"cost_basis":             o.CostBasis,
		"market_value":           o.MarketValue,
		"underlying_price":       o.UnderlyingPrice,
		"volatility":             o.Volatility,
	}
}

// DefaultOptionVolatility is assumed for option mappings that predate the
// volatility field.
const DefaultOptionVolatility = 0.30

// OptionPositionFromMap rebuilds a position from ToMap output. ticker,
// quantity, strike, expiry and option_type are required. Missing derived
// values are recomputed from the stored inputs.
func OptionPositionFromMap(m map[string]interface{}) (OptionPosition, error) {
	const entity = "option_position"

	ticker, err := requireString(m, entity, "ticker")
	if err != nil {
		return OptionPosition{}, err
	}
	quantity, err := requireFloat(m, entity, "quantity")
	if err != nil {
		return OptionPosition{}, err
	}
	strike, err := requireFloat(m, entity, "strike")
	if err != nil {
		return OptionPosition{}, err
	}
	expiry, err := requireString(m, entity, "expiry")
	if err != nil {
		return OptionPosition{}, err
	}
	rawType, err := requireString(m, entity, "option_type")
	if err != nil {
		return OptionPosition{}, err
	}
	optionType, err := ParseOptionType(rawType)
	if err != nil {
		return OptionPosition{}, &MissingFieldError{Entity: entity, Field: "option_type"}
	}

	price := optionalFloat(m, "price", 0)
	o := NewOptionPosition(OptionPositionParams{
		Contract: OptionContract{
			Underlying: ticker,
			Expiry:     expiry,
			Strike:     strike,
			Type:       optionType,
		},
		Description:     optionalString(m, "description"),
		Quantity:        int(math.Round(quantity)),
		Price:           price,
		CostBasis:       optionalFloat(m, "cost_basis", price),
		UnderlyingPrice: optionalFloat(m, "underlying_price", 0),
		UnderlyingBeta:  optionalFloat(m, "underlying_beta", 1.0),
		Delta:           optionalFloat(m, "delta", 0),
		Volatility:      optionalFloat(m, "volatility", DefaultOptionVolatility),
	})

	o.NotionalValue = optionalFloat(m, "notional_value", o.NotionalValue)
	o.DeltaExposure = optionalFloat(m, "delta_exposure", o.DeltaExposure)
	o.BetaAdjustedExposure = optionalFloat(m, "beta_adjusted_exposure", o.BetaAdjustedExposure)
	o.MarketValue = optionalFloat(m, "market_value", o.MarketValue)
	return o, nil
}
