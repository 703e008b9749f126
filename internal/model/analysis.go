package model

import "time"

// ScoreLevel is the rating band of an overall health score.
type ScoreLevel string

const (
	LevelExcellent ScoreLevel = "excellent"
	LevelGood      ScoreLevel = "good"
	LevelFair      ScoreLevel = "fair"
	LevelPoor      ScoreLevel = "poor"
)

// ScoreBreakdown holds the three weighted components, each 0-100.
type ScoreBreakdown struct {
	Risk            int `json:"risk"`
	Efficiency      int `json:"efficiency"`
	Diversification int `json:"diversification"`
}

// HealthScore is the composite portfolio score.
type HealthScore struct {
	Overall   int            `json:"overall"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Level     ScoreLevel     `json:"level"`
}

// Priority orders recommendations: urgent first, insight last.
type Priority string

const (
	PriorityUrgent      Priority = "urgent"
	PriorityOpportunity Priority = "opportunity"
	PriorityInsight     Priority = "insight"
)

// Rank returns the sort rank of the priority.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityOpportunity:
		return 1
	default:
		return 2
	}
}

// ImpactType describes what a recommendation improves.
type ImpactType string

const (
	ImpactRiskReduction ImpactType = "risk_reduction"
	ImpactYieldIncrease ImpactType = "yield_increase"
	ImpactEfficiency    ImpactType = "efficiency"
)

// Impact is the expected effect of following a recommendation.
type Impact struct {
	Type  ImpactType `json:"type"`
	Value string     `json:"value"`
}

// Action is an optional UI call-to-action.
type Action struct {
	Label  string            `json:"label"`
	Link   string            `json:"link"`
	Params map[string]string `json:"params,omitempty"`
}

// Recommendation is one ranked piece of advice.
type Recommendation struct {
	ID          string   `json:"id"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      Impact   `json:"impact"`
	Action      *Action  `json:"action,omitempty"`
}

// Comparison is the synthetic "compared to other users" statistic.
type Comparison struct {
	Percentile int    `json:"percentile"`
	Message    string `json:"message"`
}

// Insights summarises the portfolio alongside the score.
type Insights struct {
	TotalValue    float64    `json:"totalValue"`
	PositionCount int        `json:"positionCount"`
	ProtocolCount int        `json:"protocolCount"`
	Compared      Comparison `json:"compared"`
}

// AnalysisMetadata describes when and how a result was produced.
type AnalysisMetadata struct {
	AnalyzedAt  time.Time `json:"analyzedAt"`
	CachedUntil time.Time `json:"cachedUntil"`
	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
}

// AnalysisResult is the output of the health engine.
type AnalysisResult struct {
	HealthScore     HealthScore      `json:"healthScore"`
	Recommendations []Recommendation `json:"recommendations"`
	Insights        Insights         `json:"insights"`
	Metadata        AnalysisMetadata `json:"metadata"`
}
