package marketdata

import (
	"context"
	"strings"

	"github.com/aristath/exposure/internal/domain"
)

// StaticProvider serves fixed prices and betas, falling back to another
// provider for betas it does not know. It is used by the CLI for --price and
// --beta overrides.
type StaticProvider struct {
	prices   map[string]float64
	betas    map[string]float64
	fallback domain.BetaProvider
	next     domain.PriceFetcher
}

// NewStaticProvider creates a provider over the given maps. fallback and next
// may be nil.
func NewStaticProvider(prices, betas map[string]float64, fallback domain.BetaProvider, next domain.PriceFetcher) *StaticProvider {
	p := &StaticProvider{
		prices:   make(map[string]float64, len(prices)),
		betas:    make(map[string]float64, len(betas)),
		fallback: fallback,
		next:     next,
	}
	for k, v := range prices {
		p.prices[strings.ToUpper(k)] = v
	}
	for k, v := range betas {
		p.betas[strings.ToUpper(k)] = v
	}
	return p
}

// FetchLatestClose implements domain.PriceFetcher.
func (p *StaticProvider) FetchLatestClose(ctx context.Context, ticker string) (float64, bool) {
	if price, ok := p.prices[strings.ToUpper(strings.TrimSpace(ticker))]; ok && price > 0 {
		return price, true
	}
	if p.next != nil {
		return p.next.FetchLatestClose(ctx, ticker)
	}
	return 0, false
}

// GetBeta implements domain.BetaProvider.
func (p *StaticProvider) GetBeta(ctx context.Context, ticker, description string) float64 {
	if domain.IsMoneyMarketInstrument(ticker, description) {
		return 0
	}
	if beta, ok := p.betas[strings.ToUpper(strings.TrimSpace(ticker))]; ok {
		return beta
	}
	if p.fallback != nil {
		return p.fallback.GetBeta(ctx, ticker, description)
	}
	return DefaultBeta
}
