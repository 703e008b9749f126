package calculator

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"CDPShield/internal/model"
)

// LogReturns returns ln(p[i]/p[i-1]) for consecutive positive prices.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, errors.New("not enough data for returns")
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			return nil, errors.New("prices must be positive")
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	return returns, nil
}

// CalculateVolatility returns the sample standard deviation of daily log
// returns, not annualised. Portfolio scoring treats values above 0.5 as
// highly volatile on this daily scale.
func CalculateVolatility(dailyBars []model.OHLCV) (float64, error) {
	closes := extractCloses(dailyBars)
	if len(closes) < 3 {
		return 0, errors.New("not enough data for volatility calculation")
	}
	returns, err := LogReturns(closes)
	if err != nil {
		return 0, err
	}
	return stat.StdDev(returns, nil), nil
}

// CalculateChange24h returns the percent change between the last two daily closes.
func CalculateChange24h(dailyBars []model.OHLCV) (float64, error) {
	closes := extractCloses(dailyBars)
	n := len(closes)
	if n < 2 {
		return 0, errors.New("not enough data for 24h change")
	}
	prev := closes[n-2]
	if prev == 0 {
		return 0, errors.New("previous close is zero")
	}
	return (closes[n-1] - prev) / prev * 100, nil
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
