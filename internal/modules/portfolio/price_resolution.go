package portfolio

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
)

// PriceState is a step of underlying price resolution.
type PriceState int

const (
	PriceNeedsPrice PriceState = iota
	PriceFetching
	PriceResolved
	PriceDefaulted // fetch failed, previous price kept
	PriceFailed    // fetch failed and there is nothing to fall back on
)

func (s PriceState) String() string {
	switch s {
	case PriceNeedsPrice:
		return "needs_price"
	case PriceFetching:
		return "fetching"
	case PriceResolved:
		return "resolved"
	case PriceDefaulted:
		return "defaulted"
	case PriceFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON reports.
func (s PriceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PriceResolution records how one ticker's price was obtained.
type PriceResolution struct {
	Ticker   string       `json:"ticker"`
	State    PriceState   `json:"state"`
	Price    float64      `json:"price"`
	Previous float64      `json:"previous"`
	Path     []PriceState `json:"-"`
}

// Terminal reports whether the resolution reached a final state.
func (r PriceResolution) Terminal() bool {
	switch r.State {
	case PriceResolved, PriceDefaulted, PriceFailed:
		return true
	}
	return false
}

// Usable reports whether Price can be used for valuation.
func (r PriceResolution) Usable() bool {
	return (r.State == PriceResolved || r.State == PriceDefaulted) && r.Price > 0
}

type priceResolver struct {
	fetcher domain.PriceFetcher
	log     zerolog.Logger
}

func (r PriceResolution) advance(state PriceState) PriceResolution {
	r.State = state
	r.Path = append(append([]PriceState(nil), r.Path...), state)
	return r
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// resolve drives one ticker through NeedsPrice -> Fetching -> Resolved |
// Defaulted | Failed. A usable current price short-circuits to Resolved unless
// forceFetch is set; otherwise the fetcher is consulted and current is the
// fallback.
func (pr *priceResolver) resolve(ctx context.Context, ticker string, current float64, forceFetch bool) PriceResolution {
	res := PriceResolution{Ticker: ticker, Previous: current, State: PriceNeedsPrice, Path: []PriceState{PriceNeedsPrice}}

	if validPrice(current) && !forceFetch {
		res.Price = current
		return res.advance(PriceResolved)
	}

	if pr.fetcher != nil {
		res = res.advance(PriceFetching)
		price, ok := pr.fetcher.FetchLatestClose(ctx, ticker)
		if ok && validPrice(price) {
			res.Price = price
			return res.advance(PriceResolved)
		}
		pr.log.Warn().
			Str("ticker", ticker).
			Msg("No latest close available")
	}

	if validPrice(current) {
		res.Price = current
		return res.advance(PriceDefaulted)
	}
	return res.advance(PriceFailed)
}
