package recorder

import (
	"context"
	"time"

	"CDPShield/internal/model"
)

// AnalysisRecord is one stored health analysis.
type AnalysisRecord struct {
	UserID              string    `json:"userId"`
	AnalyzedAt          time.Time `json:"analyzedAt"`
	Overall             int       `json:"overall"`
	Risk                int       `json:"risk"`
	Efficiency          int       `json:"efficiency"`
	Diversification     int       `json:"diversification"`
	Level               string    `json:"level"`
	TotalValue          float64   `json:"totalValue"`
	RecommendationCount int       `json:"recommendationCount"`
	Recommendations     []string  `json:"recommendations"`
}

// AlertRecord is one stored alert with its dismissal time, if any.
type AlertRecord struct {
	model.VoiceAlert
	DismissedAt *time.Time `json:"dismissedAt,omitempty"`
}

// Recorder persists analysis and alert history.
type Recorder interface {
	RecordAnalysis(ctx context.Context, userID string, res *model.AnalysisResult) error
	RecordAlert(ctx context.Context, a model.VoiceAlert) error
	RecordDismiss(ctx context.Context, alertID string, at time.Time) error
	RecentAnalyses(ctx context.Context, userID string, limit int) ([]AnalysisRecord, error)
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	Close() error
}
