package collector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"CDPShield/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Prices    map[string]float64
	DailyData map[string][]model.OHLCV
	// Swing is the relative amplitude of the generated daily zigzag.
	Swing float64
	Now   func() time.Time
}

// NewMockFetcher returns a MockFetcher seeded with demo prices.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Prices: map[string]float64{
			"ETH":  3500,
			"WETH": 3500,
			"USDC": 1,
		},
		Swing: 0.002,
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) price(symbol string) (float64, error) {
	p, ok := m.Prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("mock: unknown symbol %s", symbol)
	}
	return p, nil
}

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if bars, ok := m.DailyData[strings.ToUpper(symbol)]; ok {
		return bars, nil
	}
	p, err := m.price(symbol)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(p, m.Swing, days, now()), nil
}

func (m *MockFetcher) FetchCurrentPrice(_ context.Context, symbol string) (float64, error) {
	return m.price(symbol)
}

// generateMockBars alternates closes around basePrice and ends on it exactly.
func generateMockBars(basePrice, swing float64, count int, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		sign := 1.0
		if (count-1-i)%2 == 1 {
			sign = -1
		}
		p := basePrice * math.Exp(sign*swing*float64(min(1, count-1-i)))
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
