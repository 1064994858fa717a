// Package di provides dependency injection for services.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/clientdata"
	"github.com/aristath/exposure/internal/clients/yahoo"
	"github.com/aristath/exposure/internal/config"
	"github.com/aristath/exposure/internal/metrics"
	"github.com/aristath/exposure/internal/modules/marketdata"
	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/simulator"
	"github.com/aristath/exposure/internal/modules/snapshots"
	"github.com/aristath/exposure/internal/scheduler"
)

// InitializeServices creates repositories, clients and services on top of
// the opened databases. Order matters: each step only uses what the previous
// steps put in the container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Repositories
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.SnapshotRepo = snapshots.NewRepository(container.SnapshotsDB.Conn(), log)

	// Market data
	container.ChartClient = yahoo.NewClient(container.ClientDataRepo, cfg.MarketData.BaseURL, cfg.MarketData.Timeout, log)
	container.BetaService = marketdata.NewBetaService(
		container.ChartClient,
		container.ClientDataRepo,
		cfg.MarketData.BetaBenchmark,
		cfg.MarketData.BetaLookbackDays,
		log,
	)
	container.VolatilityService = marketdata.NewVolatilityService(container.ChartClient, cfg.MarketData.BetaLookbackDays, log)

	// Pricing
	calculator, err := options.NewCalculator(options.Config{
		Method:       cfg.Pricing.DeltaMethod,
		RiskFreeRate: cfg.Pricing.RiskFreeRate,
		Steps:        cfg.Pricing.TreeSteps,
	})
	if err != nil {
		return fmt.Errorf("failed to create delta calculator: %w", err)
	}
	container.Calculator = calculator

	container.Metrics = metrics.NewRegistry()
	container.PortfolioService = portfolio.NewService(
		calculator,
		container.BetaService,
		container.ChartClient,
		container.VolatilityService,
		container.Metrics,
		portfolio.Config{
			RiskFreeRate:      cfg.Pricing.RiskFreeRate,
			DefaultVolatility: cfg.Pricing.Volatility,
			VolatilitySource:  cfg.Pricing.VolatilitySource,
		},
		log,
	)
	container.PortfolioStore = portfolio.NewStore(container.PortfolioService, log)
	container.Simulator = simulator.NewSimulator(
		container.PortfolioService,
		simulator.NewWorkerPool(cfg.Simulation.Workers),
		container.Metrics,
		log,
	)

	container.Scheduler = scheduler.New(container.Metrics, log)

	log.Info().
		Str("delta_method", string(calculator.Method())).
		Str("volatility_source", string(cfg.Pricing.VolatilitySource)).
		Str("benchmark", container.BetaService.Benchmark()).
		Msg("Services initialized")
	return nil
}
