package recorder

import (
	"context"
	"time"

	"CDPShield/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAnalysis(context.Context, string, *model.AnalysisResult) error { return nil }
func (n *NoopRecorder) RecordAlert(context.Context, model.VoiceAlert) error                 { return nil }
func (n *NoopRecorder) RecordDismiss(context.Context, string, time.Time) error              { return nil }
func (n *NoopRecorder) RecentAnalyses(context.Context, string, int) ([]AnalysisRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) RecentAlerts(context.Context, int) ([]AlertRecord, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                             { return nil }
