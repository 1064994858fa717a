// Package simulator sweeps hypothetical benchmark moves across a portfolio.
//
// Every underlying moves by change × its group beta. Scenarios share no state
// and run on a worker pool; the result keeps the order of the requested
// changes.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/exposure"
)

// GroupRepricer derives a group at a new underlying price without modifying
// the input.
type GroupRepricer interface {
	RecalculateGroup(g domain.PortfolioGroup, underlyingPrice float64) domain.PortfolioGroup
}

// MetricsRecorder observes simulation runs.
type MetricsRecorder interface {
	SimulationDuration(scenarios int, d time.Duration)
}

// ErrInvalidChange is returned for NaN or infinite changes.
var ErrInvalidChange = errors.New("invalid price change")

// DefaultChanges returns -30% to +30% in 5% steps.
func DefaultChanges() []float64 {
	changes := make([]float64, 0, 13)
	for i := -6; i <= 6; i++ {
		changes = append(changes, math.Round(float64(i)*5)/100)
	}
	return changes
}

// Position is one group's value and exposure at a scenario point.
type Position struct {
	Value    float64 `json:"value"`
	Exposure float64 `json:"exposure"`
}

// Point is the portfolio at one scenario.
type Point struct {
	Change               float64             `json:"change"`
	PortfolioValue       float64             `json:"portfolio_value"`
	NetExposure          float64             `json:"net_exposure"`
	BetaAdjustedExposure float64             `json:"beta_adjusted_exposure"`
	Positions            map[string]Position `json:"positions"`
}

// Baseline holds the unshocked values.
type Baseline struct {
	PortfolioValue float64             `json:"portfolio_value"`
	NetExposure    float64             `json:"net_exposure"`
	Positions      map[string]Position `json:"positions"`
}

// Result is a full sweep. Series are indexed like Changes.
type Result struct {
	ID                string               `json:"id"`
	Changes           []float64            `json:"changes"`
	Points            []Point              `json:"points"`
	PortfolioValues   []float64            `json:"portfolio_values"`
	NetExposures      []float64            `json:"net_exposures"`
	Tickers           []string             `json:"tickers"`
	PositionValues    map[string][]float64 `json:"position_values"`
	PositionExposures map[string][]float64 `json:"position_exposures"`
	Baseline          Baseline             `json:"baseline"`
}

// Simulator runs price-shock sweeps.
type Simulator struct {
	repricer GroupRepricer
	pool     *WorkerPool
	metrics  MetricsRecorder
	now      func() time.Time
	log      zerolog.Logger
}

// NewSimulator creates a simulator. metrics may be nil.
func NewSimulator(repricer GroupRepricer, pool *WorkerPool, metrics MetricsRecorder, log zerolog.Logger) *Simulator {
	if pool == nil {
		pool = NewWorkerPool(0)
	}
	return &Simulator{
		repricer: repricer,
		pool:     pool,
		metrics:  metrics,
		now:      time.Now,
		log:      log.With().Str("service", "simulator").Logger(),
	}
}

// Simulate evaluates every change against the portfolio. An empty change list
// uses DefaultChanges. The inputs are never modified.
func (s *Simulator) Simulate(
	ctx context.Context,
	groups []domain.PortfolioGroup,
	cashLike []domain.StockPosition,
	pending float64,
	changes []float64,
) (*Result, error) {
	if len(changes) == 0 {
		changes = DefaultChanges()
	}
	for _, c := range changes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidChange, c)
		}
	}

	start := time.Now()
	id := uuid.New().String()
	log := s.log.With().Str("simulation_id", id).Logger()

	baseline, err := exposure.Aggregate(groups, cashLike, pending, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate baseline: %w", err)
	}

	points, errs := s.pool.RunBatch(ctx, changes, func(change float64) (Point, error) {
		return s.scenario(groups, cashLike, pending, change)
	})
	for i, err := range errs {
		if err != nil {
			log.Error().Err(err).Float64("change", changes[i]).Msg("Scenario failed")
			return nil, fmt.Errorf("failed to simulate change %v: %w", changes[i], err)
		}
	}

	result := &Result{
		ID:                id,
		Changes:           append([]float64(nil), changes...),
		Points:            points,
		PortfolioValues:   make([]float64, len(points)),
		NetExposures:      make([]float64, len(points)),
		Tickers:           make([]string, 0, len(groups)),
		PositionValues:    make(map[string][]float64, len(groups)),
		PositionExposures: make(map[string][]float64, len(groups)),
		Baseline: Baseline{
			PortfolioValue: baseline.PortfolioEstimateValue,
			NetExposure:    baseline.NetMarketExposure,
			Positions:      positions(groups),
		},
	}
	for _, g := range groups {
		if _, ok := result.PositionValues[g.Ticker]; ok {
			continue
		}
		result.Tickers = append(result.Tickers, g.Ticker)
		result.PositionValues[g.Ticker] = make([]float64, len(points))
		result.PositionExposures[g.Ticker] = make([]float64, len(points))
	}
	for i, p := range points {
		result.PortfolioValues[i] = p.PortfolioValue
		result.NetExposures[i] = p.NetExposure
		for ticker, pos := range p.Positions {
			result.PositionValues[ticker][i] = pos.Value
			result.PositionExposures[ticker][i] = pos.Exposure
		}
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.SimulationDuration(len(changes), elapsed)
	}
	log.Info().
		Int("scenarios", len(changes)).
		Int("groups", len(groups)).
		Int("workers", s.pool.Workers()).
		Dur("duration", elapsed).
		Msg("Simulation completed")
	return result, nil
}

func (s *Simulator) scenario(groups []domain.PortfolioGroup, cashLike []domain.StockPosition, pending, change float64) (Point, error) {
	shocked := make([]domain.PortfolioGroup, len(groups))
	for i, g := range groups {
		shocked[i] = s.shock(g, change)
	}

	summary, err := exposure.Aggregate(shocked, cashLike, pending, s.now())
	if err != nil {
		return Point{}, err
	}
	return Point{
		Change:               change,
		PortfolioValue:       summary.PortfolioEstimateValue,
		NetExposure:          summary.NetMarketExposure,
		BetaAdjustedExposure: summary.LongExposure.TotalBetaAdjusted + summary.ShortExposure.TotalBetaAdjusted,
		Positions:            positions(shocked),
	}, nil
}

// shock moves the group's underlying by change × beta. Prices never go
// below zero.
func (s *Simulator) shock(g domain.PortfolioGroup, change float64) domain.PortfolioGroup {
	multiplier := math.Max(0, 1+change*g.Beta)
	if multiplier == 1 {
		return g.Clone()
	}
	return s.repricer.RecalculateGroup(g, g.UnderlyingPrice()*multiplier)
}

func positions(groups []domain.PortfolioGroup) map[string]Position {
	out := make(map[string]Position, len(groups))
	for _, g := range groups {
		p := out[g.Ticker]
		p.Value += g.MarketValue()
		p.Exposure += g.NetExposure
		out[g.Ticker] = p
	}
	return out
}
