package health

import (
	"context"
	"errors"
	"math"
	"time"

	"CDPShield/internal/model"
)

const (
	// ModelName and ProviderName tag every result; they are not configurable.
	ModelName    = "rule-based"
	ProviderName = "local"

	// ResultTTL is how long a result may be served from cache.
	ResultTTL = 5 * time.Minute

	// MaxRecommendations caps the returned list.
	MaxRecommendations = 5
)

// Component weights of the overall score.
const (
	riskWeight            = 0.5
	efficiencyWeight      = 0.3
	diversificationWeight = 0.2
)

// Levels maps an overall score to its rating band, highest first.
var Levels = []struct {
	MinScore int
	Level    model.ScoreLevel
}{
	{90, model.LevelExcellent},
	{70, model.LevelGood},
	{50, model.LevelFair},
}

// ErrNilPortfolio is returned when Analyze is called without a snapshot.
var ErrNilPortfolio = errors.New("nil portfolio snapshot")

// mapLevel maps an overall score to a ScoreLevel.
func mapLevel(overall int) model.ScoreLevel {
	for _, l := range Levels {
		if overall >= l.MinScore {
			return l.Level
		}
	}
	return model.LevelPoor
}

// Engine scores portfolio snapshots. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	delay time.Duration
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelay makes Analyze wait d before answering, to mimic a remote model.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithClock sets the time source used for result metadata.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analyze computes the health score, recommendations and insights for p.
// Apart from the metadata timestamps the result depends only on p.
func (e *Engine) Analyze(ctx context.Context, p *model.PortfolioSnapshot) (*model.AnalysisResult, error) {
	if p == nil {
		return nil, ErrNilPortfolio
	}
	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	score := Evaluate(p)
	now := e.now()
	return &model.AnalysisResult{
		HealthScore:     score,
		Recommendations: Recommend(p),
		Insights:        Summarize(p, score),
		Metadata: model.AnalysisMetadata{
			AnalyzedAt:  now,
			CachedUntil: now.Add(ResultTTL),
			Model:       ModelName,
			Provider:    ProviderName,
		},
	}, nil
}

// Evaluate computes the weighted composite health score.
func Evaluate(p *model.PortfolioSnapshot) model.HealthScore {
	risk := scoreRisk(p)
	efficiency := scoreEfficiency(p)
	diversification := scoreDiversification(p)

	overall := int(math.Round(risk*riskWeight + efficiency*efficiencyWeight + diversification*diversificationWeight))
	overall = min(max(overall, 0), 100)

	return model.HealthScore{
		Overall: overall,
		Breakdown: model.ScoreBreakdown{
			Risk:            int(math.Round(risk)),
			Efficiency:      int(math.Round(efficiency)),
			Diversification: int(math.Round(diversification)),
		},
		Level: mapLevel(overall),
	}
}
