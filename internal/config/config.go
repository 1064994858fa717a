// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Pricing    PricingConfig
	MarketData MarketDataConfig
	Simulation SimulationConfig
	Schedules  ScheduleConfig

	SnapshotRetentionDays int
	CORSOrigins           []string
}

// PricingConfig holds the option pricing inputs
type PricingConfig struct {
	RiskFreeRate     float64
	Volatility       float64
	TreeSteps        int
	DeltaMethod      options.Method
	VolatilitySource portfolio.VolatilitySource
}

// MarketDataConfig holds the chart API and beta regression settings
type MarketDataConfig struct {
	BaseURL          string
	Timeout          time.Duration
	BetaBenchmark    string
	BetaLookbackDays int
}

// SimulationConfig holds the price-shock sweep settings
type SimulationConfig struct {
	Workers int
	Changes []float64 // empty means the default sweep
}

// ScheduleConfig holds cron schedules. An empty schedule disables the job.
type ScheduleConfig struct {
	PriceRefresh      string
	CacheCleanup      string
	DatabaseCheck     string
	SnapshotRetention string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("EXPOSURE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	method, err := options.ParseMethod(getEnv("PRICING_DELTA_METHOD", string(options.MethodBinomial)))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_DELTA_METHOD: %w", err)
	}
	volSource, err := portfolio.ParseVolatilitySource(getEnv("PRICING_VOLATILITY_SOURCE", string(portfolio.VolatilityFlat)))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_VOLATILITY_SOURCE: %w", err)
	}
	changes, err := utils.ParseFloatList(getEnv("SIMULATION_CHANGES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATION_CHANGES: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Pricing: PricingConfig{
			RiskFreeRate:     getEnvAsFloat("PRICING_RISK_FREE_RATE", options.DefaultRiskFreeRate),
			Volatility:       getEnvAsFloat("PRICING_VOLATILITY", options.DefaultVolatility),
			TreeSteps:        getEnvAsInt("PRICING_TREE_STEPS", options.DefaultTreeSteps),
			DeltaMethod:      method,
			VolatilitySource: volSource,
		},
		MarketData: MarketDataConfig{
			BaseURL:          getEnv("MARKET_DATA_BASE_URL", ""),
			Timeout:          time.Duration(getEnvAsInt("MARKET_DATA_TIMEOUT_SECONDS", 10)) * time.Second,
			BetaBenchmark:    getEnv("BETA_BENCHMARK", "SPY"),
			BetaLookbackDays: getEnvAsInt("BETA_LOOKBACK_DAYS", 252),
		},
		Simulation: SimulationConfig{
			Workers: getEnvAsInt("SIMULATION_WORKERS", runtime.NumCPU()),
			Changes: changes,
		},
		Schedules: ScheduleConfig{
			PriceRefresh:      getEnvAllowEmpty("PRICE_REFRESH_SCHEDULE", "0 */15 * * * *"),
			CacheCleanup:      getEnvAllowEmpty("CACHE_CLEANUP_SCHEDULE", "0 0 3 * * *"),
			DatabaseCheck:     getEnvAllowEmpty("DATABASE_CHECK_SCHEDULE", "0 30 3 * * *"),
			SnapshotRetention: getEnvAllowEmpty("SNAPSHOT_RETENTION_SCHEDULE", "0 0 4 * * *"),
		},
		SnapshotRetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 90),
		CORSOrigins:           utils.ParseCSV(getEnv("CORS_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects out-of-range values
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if !finite(c.Pricing.RiskFreeRate) || c.Pricing.RiskFreeRate < 0 || c.Pricing.RiskFreeRate > 1 {
		return fmt.Errorf("PRICING_RISK_FREE_RATE must be between 0 and 1, got %v", c.Pricing.RiskFreeRate)
	}
	if !finite(c.Pricing.Volatility) || c.Pricing.Volatility <= 0 || c.Pricing.Volatility > 5 {
		return fmt.Errorf("PRICING_VOLATILITY must be in (0, 5], got %v", c.Pricing.Volatility)
	}
	if c.Pricing.TreeSteps < 1 || c.Pricing.TreeSteps > 5000 {
		return fmt.Errorf("PRICING_TREE_STEPS must be between 1 and 5000, got %d", c.Pricing.TreeSteps)
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("MARKET_DATA_TIMEOUT_SECONDS must be positive")
	}
	if c.MarketData.BetaLookbackDays < 21 {
		return fmt.Errorf("BETA_LOOKBACK_DAYS must be at least 21, got %d", c.MarketData.BetaLookbackDays)
	}
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("SIMULATION_WORKERS must be positive, got %d", c.Simulation.Workers)
	}
	for _, change := range c.Simulation.Changes {
		if !finite(change) || change <= -1 {
			return fmt.Errorf("SIMULATION_CHANGES values must be finite and greater than -1, got %v", change)
		}
	}
	if c.SnapshotRetentionDays < 1 {
		return fmt.Errorf("SNAPSHOT_RETENTION_DAYS must be positive, got %d", c.SnapshotRetentionDays)
	}

	// same fields as the scheduler's cron.WithSeconds()
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, schedule := range map[string]string{
		"PRICE_REFRESH_SCHEDULE":      c.Schedules.PriceRefresh,
		"CACHE_CLEANUP_SCHEDULE":      c.Schedules.CacheCleanup,
		"DATABASE_CHECK_SCHEDULE":     c.Schedules.DatabaseCheck,
		"SNAPSHOT_RETENTION_SCHEDULE": c.Schedules.SnapshotRetention,
	} {
		if schedule == "" {
			continue
		}
		if _, err := parser.Parse(schedule); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
