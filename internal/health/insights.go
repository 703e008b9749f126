package health

import (
	"fmt"
	"math"

	"CDPShield/internal/model"
)

// Synthetic population used for the percentile. It is a placeholder
// curve, not real user data.
const (
	populationMean   = 65
	populationStdDev = 15
)

// Summarize builds the insight block for a scored portfolio.
func Summarize(p *model.PortfolioSnapshot, score model.HealthScore) model.Insights {
	protocols, _ := protocolDistribution(p)
	percentile := Percentile(score.Overall)
	return model.Insights{
		TotalValue:    p.TotalValue,
		PositionCount: len(p.Positions),
		ProtocolCount: len(protocols),
		Compared: model.Comparison{
			Percentile: percentile,
			Message:    comparisonMessage(percentile),
		},
	}
}

// Percentile approximates a normal CDF with tanh and clamps to [1, 99].
func Percentile(overall int) int {
	z := float64(overall-populationMean) / populationStdDev
	pct := int(math.Round(50 + 34*math.Tanh(z/1.5)))
	return min(99, max(1, pct))
}

func comparisonMessage(percentile int) string {
	switch {
	case percentile >= 80:
		return fmt.Sprintf("Excellent! Your portfolio is healthier than %d%% of users. Keep it up!", percentile)
	case percentile >= 60:
		return fmt.Sprintf("Good job! Your portfolio outperforms %d%% of users. Some room for improvement.", percentile)
	case percentile >= 40:
		return fmt.Sprintf("Your portfolio is performing better than %d%% of users. Consider the recommendations below.", percentile)
	default:
		return fmt.Sprintf("Attention needed. Your portfolio is ahead of only %d%% of users and needs optimization to reduce risks.", percentile)
	}
}
