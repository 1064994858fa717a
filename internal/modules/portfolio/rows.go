package portfolio

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/validation"
	"github.com/aristath/exposure/internal/utils"
)

const pendingActivitySymbol = "pending activity"

// stockSeed accumulates the stock rows of one underlying.
type stockSeed struct {
	ticker      string
	description string
	quantity    float64
	price       float64
	costBasis   float64
	beta        float64
	index       int
}

type optionRow struct {
	index       int
	contract    domain.OptionContract
	description string
	quantity    int
	price       float64
	costBasis   float64
}

type cashSeed struct {
	ticker      string
	description string
	quantity    float64
	value       float64
	beta        float64
}

type parsedRows struct {
	stocks  []*stockSeed
	options []optionRow
	cash    []domain.StockPosition
	pending float64
	skipped []SkippedRow

	// rowPrices is the first usable per-share price seen for each non-option
	// ticker, cash-like rows included.
	rowPrices map[string]float64
}

func (p *parsedRows) notePrice(ticker string, price float64) {
	if _, ok := p.rowPrices[ticker]; !ok && validPrice(price) {
		p.rowPrices[ticker] = price
	}
}

func (s *Service) skip(p *parsedRows, index int, symbol string, err error) {
	s.log.Warn().
		Int("row", index).
		Str("symbol", symbol).
		Str("reason", err.Error()).
		Msg("Skipping row")
	p.skipped = append(p.skipped, SkippedRow{Index: index, Symbol: symbol, Reason: err.Error()})
}

// parseRows classifies and cleans every row. Stock rows are merged per ticker
// in first-appearance order and cash-like rows are deduplicated per ticker.
func (s *Service) parseRows(ctx context.Context, rows []validation.Row) *parsedRows {
	p := &parsedRows{rowPrices: make(map[string]float64)}
	stocks := make(map[string]*stockSeed)
	var cashOrder []string
	cash := make(map[string]*cashSeed)

	isOption := func(row validation.Row) bool {
		return !isPendingActivity(row) && validation.IsOptionDescription(row.Get(validation.ColDescription))
	}
	validated := validation.ValidateRows(rows, isOption, func(row validation.Row, err error) {
		s.skip(p, row.Index, optionUnderlying(row), err)
	})
	for _, v := range validated {
		opt, err := parseOptionRow(v)
		if err != nil {
			s.skip(p, v.Index, opt.contract.Underlying, err)
			continue
		}
		p.options = append(p.options, opt)
	}

	for _, row := range rows {
		rawSymbol := row.Get(validation.ColSymbol)
		if isPendingActivity(row) {
			p.pending += pendingActivityValue(row)
			continue
		}
		if isOption(row) {
			continue
		}

		desc := row.Get(validation.ColDescription)
		ticker := utils.CleanSymbol(rawSymbol)
		if ticker == "" {
			s.skip(p, row.Index, rawSymbol, domain.NewDataError(row.Index, validation.ColSymbol, rawSymbol, "missing symbol"))
			continue
		}

		qty, qtyErr := optionalNumber(row, validation.ColQuantity)
		price, priceErr := optionalNumber(row, validation.ColLastPrice)
		value, valueErr := optionalNumber(row, validation.ColCurrentValue)
		if err := errors.Join(qtyErr, priceErr, valueErr); err != nil {
			s.skip(p, row.Index, ticker, err)
			continue
		}
		if qty == 0 && value == 0 {
			s.skip(p, row.Index, ticker, domain.NewDataError(row.Index, validation.ColQuantity, row.Get(validation.ColQuantity), "no quantity or value"))
			continue
		}
		if price < 0 {
			s.skip(p, row.Index, ticker, domain.NewDataError(row.Index, validation.ColLastPrice, row.Get(validation.ColLastPrice), "negative price"))
			continue
		}

		beta, cashLike := s.classifyStock(ctx, row, rawSymbol, ticker, desc)
		if qty != 0 {
			if price != 0 {
				p.notePrice(ticker, price)
			} else {
				p.notePrice(ticker, value/qty)
			}
		}
		if cashLike {
			if value == 0 {
				if price == 0 {
					price = 1
				}
				value = qty * price
			}
			if qty == 0 {
				qty = value
			}
			seed, ok := cash[ticker]
			if !ok {
				seed = &cashSeed{ticker: ticker, description: desc, beta: beta}
				cash[ticker] = seed
				cashOrder = append(cashOrder, ticker)
			}
			seed.quantity += qty
			seed.value += value
			continue
		}

		if qty == 0 {
			s.skip(p, row.Index, ticker, domain.NewDataError(row.Index, validation.ColQuantity, row.Get(validation.ColQuantity), "stock row without quantity"))
			continue
		}
		if price == 0 && value != 0 {
			price = value / qty
		}
		costBasis, err := optionalNumber(row, validation.ColAverageCostBasis)
		if err != nil || costBasis == 0 {
			costBasis = price
		}

		seed, ok := stocks[ticker]
		if !ok {
			seed = &stockSeed{ticker: ticker, description: desc, costBasis: costBasis, beta: beta, index: row.Index}
			stocks[ticker] = seed
			p.stocks = append(p.stocks, seed)
		}
		seed.quantity += qty
		if seed.price == 0 {
			seed.price = price
		}
	}

	p.cash = make([]domain.StockPosition, 0, len(cashOrder))
	for _, ticker := range cashOrder {
		c := cash[ticker]
		p.cash = append(p.cash, domain.NewCashPosition(c.ticker, c.description, c.quantity, c.value, c.beta))
	}
	sort.SliceStable(p.skipped, func(i, j int) bool {
		return p.skipped[i].Index < p.skipped[j].Index
	})
	return p
}

func isPendingActivity(row validation.Row) bool {
	return strings.EqualFold(strings.TrimSpace(row.Get(validation.ColSymbol)), pendingActivitySymbol)
}

func optionUnderlying(row validation.Row) string {
	return validation.ParseOptionDescription(row.Get(validation.ColDescription)).Option.Underlying
}

// classifyStock returns the beta of a stock row and whether it is cash-like.
// A Beta column on the row takes precedence over the beta provider.
func (s *Service) classifyStock(ctx context.Context, row validation.Row, rawSymbol, ticker, desc string) (float64, bool) {
	if domain.IsMoneyMarketInstrument(rawSymbol, desc) {
		return 0, true
	}

	beta, err := optionalNumber(row, validation.ColBeta)
	if err != nil || !row.Has(validation.ColBeta) {
		beta = s.betaFor(ctx, ticker, desc)
	}
	return beta, domain.IsCashLike(rawSymbol, desc, beta)
}

func (s *Service) betaFor(ctx context.Context, ticker, desc string) float64 {
	if s.betas == nil {
		return 1.0
	}
	return s.betas.GetBeta(ctx, ticker, desc)
}

func parseOptionRow(v validation.ValidatedRow) (optionRow, error) {
	contract := validation.ParseOptionDescription(v.Description).Option
	rawQty := v.Row.Get(validation.ColQuantity)
	if v.Quantity != math.Trunc(v.Quantity) {
		return optionRow{contract: contract}, domain.NewDataError(v.Index, validation.ColQuantity, rawQty, "fractional option contracts")
	}
	if v.Quantity == 0 {
		return optionRow{contract: contract}, domain.NewDataError(v.Index, validation.ColQuantity, rawQty, "zero contracts")
	}
	if v.Price < 0 {
		return optionRow{contract: contract}, domain.NewDataError(v.Index, validation.ColLastPrice, v.Row.Get(validation.ColLastPrice), "negative price")
	}

	costBasis, err := optionalNumber(v.Row, validation.ColAverageCostBasis)
	if err != nil || costBasis == 0 {
		costBasis = v.Price
	}
	return optionRow{
		index:       v.Index,
		contract:    contract,
		description: v.Description,
		quantity:    int(v.Quantity),
		price:       v.Price,
		costBasis:   costBasis,
	}, nil
}

// optionalNumber parses a money or quantity cell. Absent cells are 0 without
// error; present but malformed cells are a DataError.
func optionalNumber(row validation.Row, column string) (float64, error) {
	raw := row.Get(column)
	v, err := validation.CleanCurrency(raw)
	if err != nil {
		if errors.Is(err, validation.ErrEmptyValue) {
			return 0, nil
		}
		return 0, domain.NewDataError(row.Index, column, raw, "not numeric")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.NewDataError(row.Index, column, raw, "not finite")
	}
	return v, nil
}

// pendingActivityValue reads the first non-zero of the value columns brokers
// use for unsettled activity.
func pendingActivityValue(row validation.Row) float64 {
	for _, col := range []string{
		validation.ColCurrentValue,
		validation.ColLastPriceChange,
		validation.ColTodaysGainLossDollar,
	} {
		if v, err := validation.CleanCurrency(row.Get(col)); err == nil && v != 0 {
			return v
		}
	}
	return 0
}
