// Package portfolio assembles raw broker rows into portfolio groups and keeps
// the current portfolio state.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/exposure"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/validation"
	"github.com/aristath/exposure/internal/utils"
)

// VolatilitySource selects the volatility fed to the delta calculator.
type VolatilitySource string

const (
	VolatilityFlat       VolatilitySource = "flat"       // configured default for every option
	VolatilityImplied    VolatilitySource = "implied"    // solved from the row's premium
	VolatilityHistorical VolatilitySource = "historical" // realized volatility of the underlying
)

// ParseVolatilitySource accepts a configured source name. Empty means flat.
func ParseVolatilitySource(s string) (VolatilitySource, error) {
	switch v := VolatilitySource(strings.ToLower(strings.TrimSpace(s))); v {
	case VolatilityFlat, VolatilityImplied, VolatilityHistorical:
		return v, nil
	case "":
		return VolatilityFlat, nil
	}
	return "", fmt.Errorf("unknown volatility source %q", s)
}

// MetricsRecorder receives assembly and price refresh metrics. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	RowsSkipped(n int)
	GroupsFailed(n int)
	AssemblyDuration(d time.Duration)
	PriceResolved(state string)
}

// Config holds the pricing inputs of the service.
type Config struct {
	RiskFreeRate      float64
	DefaultVolatility float64
	VolatilitySource  VolatilitySource
	Now               func() time.Time
}

// SkippedRow names an input row (or a whole group, Index -1) dropped during
// assembly and why.
type SkippedRow struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Result is the complete output of ProcessPortfolio.
type Result struct {
	Groups               []domain.PortfolioGroup `json:"groups"`
	Summary              domain.PortfolioSummary `json:"summary"`
	CashLike             []domain.StockPosition  `json:"cash_like"`
	PendingActivityValue float64                 `json:"pending_activity_value"`
	Skipped              []SkippedRow            `json:"skipped"`
}

// Service turns validated broker rows into portfolio groups and summaries.
type Service struct {
	calculator options.DeltaCalculator
	betas      domain.BetaProvider
	prices     *priceResolver
	vols       domain.VolatilityProvider
	metrics    MetricsRecorder
	cfg        Config
	log        zerolog.Logger
}

// NewService creates a portfolio service. betas, prices, vols and metrics may
// be nil: betas then default to 1.0, orphaned options cannot be priced, and
// historical volatility falls back to the flat default.
func NewService(
	calculator options.DeltaCalculator,
	betas domain.BetaProvider,
	prices domain.PriceFetcher,
	vols domain.VolatilityProvider,
	metrics MetricsRecorder,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.DefaultVolatility <= 0 {
		cfg.DefaultVolatility = options.DefaultVolatility
	}
	if cfg.VolatilitySource == "" {
		cfg.VolatilitySource = VolatilityFlat
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	log = log.With().Str("service", "portfolio").Logger()
	return &Service{
		calculator: calculator,
		betas:      betas,
		prices:     &priceResolver{fetcher: prices, log: log},
		vols:       vols,
		metrics:    metrics,
		cfg:        cfg,
		log:        log,
	}
}

// ProcessPortfolio assembles rows into groups and a summary.
//
// Malformed rows are skipped and listed in Result.Skipped. Missing required
// columns, orphaned options whose underlying cannot be priced, and a failure
// of the first group abort with a typed error.
func (s *Service) ProcessPortfolio(ctx context.Context, rows []validation.Row) (*Result, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.AssemblyDuration(time.Since(start))
		}
	}()
	timer := utils.NewTimer("process_portfolio", s.log)
	defer timer.Stop()

	if len(rows) > 0 {
		if err := validation.ValidateColumns(validation.ColumnsOf(rows)); err != nil {
			s.log.Error().Err(err).Msg("Rejected portfolio input")
			return nil, err
		}
	}

	parsed := s.parseRows(ctx, rows)
	groups, failed, err := s.buildGroups(ctx, parsed)
	if s.metrics != nil && len(parsed.skipped) > 0 {
		s.metrics.RowsSkipped(len(parsed.skipped))
	}
	if s.metrics != nil && len(failed) > 0 {
		s.metrics.GroupsFailed(len(failed))
	}
	if err != nil {
		return nil, err
	}

	summary, err := exposure.Aggregate(groups, parsed.cash, parsed.pending, s.cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate portfolio: %w", err)
	}

	skipped := make([]SkippedRow, 0, len(parsed.skipped)+len(failed))
	skipped = append(skipped, parsed.skipped...)
	skipped = append(skipped, failed...)
	s.log.Info().
		Int("rows", len(rows)).
		Int("groups", len(groups)).
		Int("cash_like", len(parsed.cash)).
		Int("skipped", len(skipped)).
		Float64("net_exposure", summary.NetMarketExposure).
		Msg("Portfolio assembled")

	return &Result{
		Groups:               groups,
		Summary:              summary,
		CashLike:             parsed.cash,
		PendingActivityValue: parsed.pending,
		Skipped:              skipped,
	}, nil
}

// Summarize re-runs aggregation over existing groups.
func (s *Service) Summarize(groups []domain.PortfolioGroup, cash []domain.StockPosition, pending float64) (domain.PortfolioSummary, error) {
	return exposure.Aggregate(groups, cash, pending, s.cfg.Now())
}

// IsFatal reports whether err aborts assembly as a whole, as opposed to an
// unexpected internal failure.
func IsFatal(err error) bool {
	var structural *domain.StructuralError
	var unresolved *domain.UnresolvedUnderlyingError
	var first *domain.FirstGroupError
	return errors.As(err, &structural) || errors.As(err, &unresolved) || errors.As(err, &first)
}
