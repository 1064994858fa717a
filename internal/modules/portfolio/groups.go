package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/validation"
)

// buildGroups turns parsed rows into groups: one per stock ticker in input
// order, then one synthetic group per orphaned underlying. The first group
// failing aborts; later failures are returned as skipped entries. Stocks
// whose price cannot be resolved are skipped as rows.
func (s *Service) buildGroups(ctx context.Context, p *parsedRows) ([]domain.PortfolioGroup, []SkippedRow, error) {
	byUnderlying := make(map[string][]optionRow)
	for _, o := range p.options {
		byUnderlying[o.contract.Underlying] = append(byUnderlying[o.contract.Underlying], o)
	}

	type pending struct {
		stock   *stockSeed
		ticker  string
		options []optionRow
	}
	var plan []pending
	seen := make(map[string]bool)
	for _, seed := range p.stocks {
		plan = append(plan, pending{stock: seed, ticker: seed.ticker, options: byUnderlying[seed.ticker]})
		seen[seed.ticker] = true
	}
	for _, o := range p.options {
		u := o.contract.Underlying
		if seen[u] {
			continue
		}
		seen[u] = true
		plan = append(plan, pending{ticker: u, options: byUnderlying[u]})
	}

	groups := make([]domain.PortfolioGroup, 0, len(plan))
	var failed []SkippedRow
	attempted := 0
	for _, item := range plan {
		var (
			g   domain.PortfolioGroup
			err error
		)
		if item.stock != nil {
			res := s.prices.resolve(ctx, item.ticker, item.stock.price, false)
			if !res.Usable() {
				if len(item.options) > 0 {
					err := &domain.UnresolvedUnderlyingError{Underlying: item.ticker, Options: len(item.options)}
					s.log.Error().Err(err).Str("ticker", item.ticker).Msg("Cannot price options on unpriced stock")
					return nil, failed, err
				}
				s.skip(p, item.stock.index, item.ticker,
					domain.NewDataError(item.stock.index, validation.ColLastPrice, "", "no price available ("+res.State.String()+")"))
				continue
			}
			g, err = s.buildStockGroup(ctx, item.stock, res.Price, item.options)
		} else {
			g, err = s.buildOrphanGroup(ctx, item.ticker, p.rowPrices[item.ticker], item.options)
		}
		attempted++
		if err == nil {
			groups = append(groups, g)
			continue
		}

		var unresolved *domain.UnresolvedUnderlyingError
		if errors.As(err, &unresolved) {
			s.log.Error().Err(err).Str("ticker", item.ticker).Msg("Cannot price orphaned options")
			return nil, failed, err
		}
		if attempted == 1 {
			s.log.Error().Err(err).Str("ticker", item.ticker).Msg("First portfolio group failed")
			return nil, append(failed, SkippedRow{Index: -1, Symbol: item.ticker, Reason: err.Error()}),
				&domain.FirstGroupError{Ticker: item.ticker, Err: err}
		}
		s.log.Warn().Err(err).Str("ticker", item.ticker).Msg("Skipping portfolio group")
		failed = append(failed, SkippedRow{Index: -1, Symbol: item.ticker, Reason: err.Error()})
	}
	return groups, failed, nil
}

func (s *Service) buildStockGroup(ctx context.Context, seed *stockSeed, price float64, opts []optionRow) (domain.PortfolioGroup, error) {
	stock := domain.NewStockPosition(seed.ticker, seed.quantity, price, seed.beta, seed.costBasis)
	stock.Description = seed.description
	return s.assembleGroup(ctx, seed.ticker, stock, opts)
}

// buildOrphanGroup prices options whose underlying has no stock group. A
// price from the input (a cash-like row of the same ticker) is used before
// the fetcher.
func (s *Service) buildOrphanGroup(ctx context.Context, underlying string, rowPrice float64, opts []optionRow) (domain.PortfolioGroup, error) {
	res := s.prices.resolve(ctx, underlying, rowPrice, false)
	if !res.Usable() {
		return domain.PortfolioGroup{}, &domain.UnresolvedUnderlyingError{Underlying: underlying, Options: len(opts)}
	}
	beta := s.betaFor(ctx, underlying, "")

	s.log.Info().
		Str("ticker", underlying).
		Int("options", len(opts)).
		Float64("price", res.Price).
		Str("state", res.State.String()).
		Msg("Grouped orphaned options under placeholder stock")

	// zero-quantity placeholder keeps the ticker without adding stock exposure
	placeholder := domain.NewStockPosition(underlying, 0, res.Price, beta, 0)
	return s.assembleGroup(ctx, underlying, placeholder, opts)
}

func (s *Service) assembleGroup(ctx context.Context, ticker string, stock domain.StockPosition, opts []optionRow) (domain.PortfolioGroup, error) {
	positions := make([]domain.OptionPosition, 0, len(opts))
	for _, o := range opts {
		vol := s.volatilityFor(ctx, o, stock.Price)
		val := s.calculator.Evaluate(o.contract, o.quantity, stock.Price, vol)

		price := o.price
		if price == 0 {
			price = val.Price
		}
		pos := domain.NewOptionPosition(domain.OptionPositionParams{
			Contract:        o.contract,
			Description:     o.description,
			Quantity:        o.quantity,
			Price:           price,
			CostBasis:       o.costBasis,
			UnderlyingPrice: stock.Price,
			UnderlyingBeta:  stock.Beta,
			Delta:           val.Delta,
			Volatility:      vol,
		})
		if !finite(pos.DeltaExposure, pos.MarketValue, pos.BetaAdjustedExposure) {
			return domain.PortfolioGroup{}, fmt.Errorf("non-finite metrics for option %q", o.description)
		}
		positions = append(positions, pos)
	}

	g := domain.NewPortfolioGroup(ticker, &stock, positions, stock.Beta)
	if !finite(g.NetExposure, g.BetaAdjustedExposure, stock.MarketValue) {
		return domain.PortfolioGroup{}, fmt.Errorf("non-finite metrics for group %s", ticker)
	}
	return g, nil
}

func (s *Service) volatilityFor(ctx context.Context, o optionRow, underlyingPrice float64) float64 {
	switch s.cfg.VolatilitySource {
	case VolatilityImplied:
		if o.price > 0 && underlyingPrice > 0 {
			if iv := options.ImpliedVolatility(o.contract, underlyingPrice, o.price, s.cfg.RiskFreeRate, s.cfg.Now()); iv > 0 {
				return iv
			}
		}
	case VolatilityHistorical:
		if s.vols != nil {
			if v, ok := s.vols.GetVolatility(ctx, o.contract.Underlying); ok && v > 0 {
				return v
			}
		}
	}
	return s.cfg.DefaultVolatility
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RecalculateGroup derives a new group with the underlying moved to
// underlyingPrice. The stock is repriced; each option gets a new delta from
// the calculator and its premium shifted by the change in theoretical value,
// floored at zero. The input group is not modified.
func (s *Service) RecalculateGroup(g domain.PortfolioGroup, underlyingPrice float64) domain.PortfolioGroup {
	revalued := make([]domain.OptionPosition, len(g.OptionPositions))
	for i, o := range g.OptionPositions {
		c := o.Contract()
		next := s.calculator.Evaluate(c, o.Quantity, underlyingPrice, o.Volatility)

		premium := next.Price
		if o.UnderlyingPrice > 0 {
			prev := s.calculator.Evaluate(c, o.Quantity, o.UnderlyingPrice, o.Volatility)
			premium = math.Max(0, o.Price+next.Price-prev.Price)
		}
		if underlyingPrice == o.UnderlyingPrice {
			premium = o.Price
		}
		revalued[i] = o.Revalue(underlyingPrice, premium, next.Delta)
	}

	out := g.WithOptions(revalued)
	if g.StockPosition != nil {
		out = out.WithStock(g.StockPosition.WithPrice(underlyingPrice))
	}
	return out
}

// RefreshPrices fetches the latest close once per group ticker and returns
// recalculated copies of the groups. Tickers without a fresh price keep their
// current price. The returned report has one entry per group.
func (s *Service) RefreshPrices(ctx context.Context, groups []domain.PortfolioGroup) ([]domain.PortfolioGroup, []PriceResolution) {
	out := make([]domain.PortfolioGroup, len(groups))
	report := make([]PriceResolution, 0, len(groups))
	resolved := make(map[string]PriceResolution)

	for i, g := range groups {
		res, ok := resolved[g.Ticker]
		if !ok {
			res = s.prices.resolve(ctx, g.Ticker, g.UnderlyingPrice(), true)
			resolved[g.Ticker] = res
			report = append(report, res)
		}

		if res.State == PriceResolved && res.Price != g.UnderlyingPrice() {
			out[i] = s.RecalculateGroup(g, res.Price)
			continue
		}
		out[i] = g.Clone()
	}

	updated := 0
	for _, r := range report {
		if r.State == PriceResolved {
			updated++
		}
		if s.metrics != nil {
			s.metrics.PriceResolved(r.State.String())
		}
	}
	s.log.Info().
		Int("tickers", len(report)).
		Int("updated", updated).
		Msg("Refreshed prices")
	return out, report
}
