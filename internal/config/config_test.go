package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EXPOSURE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, options.DefaultRiskFreeRate, cfg.Pricing.RiskFreeRate)
	assert.Equal(t, options.DefaultVolatility, cfg.Pricing.Volatility)
	assert.Equal(t, options.DefaultTreeSteps, cfg.Pricing.TreeSteps)
	assert.Equal(t, options.MethodBinomial, cfg.Pricing.DeltaMethod)
	assert.Equal(t, portfolio.VolatilityFlat, cfg.Pricing.VolatilitySource)
	assert.Equal(t, "SPY", cfg.MarketData.BetaBenchmark)
	assert.Equal(t, 252, cfg.MarketData.BetaLookbackDays)
	assert.Equal(t, 10*time.Second, cfg.MarketData.Timeout)
	assert.Equal(t, runtime.NumCPU(), cfg.Simulation.Workers)
	assert.Empty(t, cfg.Simulation.Changes)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedules.PriceRefresh)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, len(cfg.DataDir) > 0 && cfg.DataDir[0] == '/')
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("EXPOSURE_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("PRICING_DELTA_METHOD", "Black_Scholes")
	t.Setenv("PRICING_VOLATILITY_SOURCE", "historical")
	t.Setenv("PRICING_RISK_FREE_RATE", "0.04")
	t.Setenv("SIMULATION_CHANGES", "-0.2, 0, 0.2")
	t.Setenv("SIMULATION_WORKERS", "3")
	t.Setenv("PRICE_REFRESH_SCHEDULE", "")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, options.MethodBlackScholes, cfg.Pricing.DeltaMethod)
	assert.Equal(t, portfolio.VolatilityHistorical, cfg.Pricing.VolatilitySource)
	assert.Equal(t, 0.04, cfg.Pricing.RiskFreeRate)
	assert.Equal(t, []float64{-0.2, 0, 0.2}, cfg.Simulation.Changes)
	assert.Equal(t, 3, cfg.Simulation.Workers)
	assert.Equal(t, "", cfg.Schedules.PriceRefresh, "empty schedule disables the job")
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, cfg.CORSOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PRICING_DELTA_METHOD", "monte_carlo"},
		{"PRICING_VOLATILITY_SOURCE", "vix"},
		{"SIMULATION_CHANGES", "0.1,abc"},
		{"SIMULATION_CHANGES", "-1.5"},
		{"GO_PORT", "70000"},
		{"PRICING_VOLATILITY", "0"},
		{"PRICING_RISK_FREE_RATE", "2"},
		{"PRICING_TREE_STEPS", "0"},
		{"BETA_LOOKBACK_DAYS", "5"},
		{"SIMULATION_WORKERS", "0"},
		{"SNAPSHOT_RETENTION_DAYS", "0"},
		{"PRICE_REFRESH_SCHEDULE", "every now and then"},
		{"CACHE_CLEANUP_SCHEDULE", "0 3 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("EXPOSURE_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_FLOAT", "1.5")
	t.Setenv("TEST_BOOL", "yes")

	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 7))
	assert.Equal(t, 1.5, getEnvAsFloat("TEST_FLOAT", 0))
	assert.Equal(t, true, getEnvAsBool("TEST_BOOL", true), "unparseable bool keeps the default")
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_VALUE", "fallback"))
	assert.Equal(t, "fallback", getEnvAllowEmpty("TEST_UNSET_VALUE", "fallback"))
}
