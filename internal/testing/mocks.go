package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aristath/exposure/internal/domain"
)

// MockPriceFetcher is a mock implementation of domain.PriceFetcher
type MockPriceFetcher struct {
	mock.Mock
}

// FetchLatestClose implements domain.PriceFetcher
func (m *MockPriceFetcher) FetchLatestClose(ctx context.Context, ticker string) (float64, bool) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(float64), args.Bool(1)
}

// MockBetaProvider is a mock implementation of domain.BetaProvider
type MockBetaProvider struct {
	mock.Mock
}

// GetBeta implements domain.BetaProvider
func (m *MockBetaProvider) GetBeta(ctx context.Context, ticker, description string) float64 {
	args := m.Called(ctx, ticker, description)
	return args.Get(0).(float64)
}

// MockVolatilityProvider is a mock implementation of domain.VolatilityProvider
type MockVolatilityProvider struct {
	mock.Mock
}

// GetVolatility implements domain.VolatilityProvider
func (m *MockVolatilityProvider) GetVolatility(ctx context.Context, ticker string) (float64, bool) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(float64), args.Bool(1)
}

// MockHistoryFetcher is a mock implementation of domain.HistoryFetcher
type MockHistoryFetcher struct {
	mock.Mock
}

// GetDailyCloses implements domain.HistoryFetcher
func (m *MockHistoryFetcher) GetDailyCloses(ctx context.Context, ticker string, days int) ([]domain.DailyClose, error) {
	args := m.Called(ctx, ticker, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyClose), args.Error(1)
}
