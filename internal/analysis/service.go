// Package analysis runs the health engine for users, caching results until
// their cachedUntil time and recording them.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"CDPShield/internal/cache"
	"CDPShield/internal/health"
	"CDPShield/internal/model"
)

const cacheName = "analysis"

// SnapshotBuilder assembles a user's portfolio snapshot.
type SnapshotBuilder interface {
	Build(ctx context.Context, userID string) (*model.PortfolioSnapshot, error)
}

// Recorder stores finished analyses.
type Recorder interface {
	RecordAnalysis(ctx context.Context, userID string, res *model.AnalysisResult) error
}

// Metrics observes analyses and cache lookups.
type Metrics interface {
	ObserveAnalysis(userID string, res *model.AnalysisResult, took time.Duration, err error)
	CacheLookup(cache string, hit bool)
}

type cached struct {
	fingerprint uint64
	result      *model.AnalysisResult
}

// Service wraps the engine with a per-user result cache.
type Service struct {
	engine   *health.Engine
	builder  SnapshotBuilder
	recorder Recorder
	metrics  Metrics
	results  *cache.TTL[string, cached]
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithRecorder(r Recorder) Option        { return func(s *Service) { s.recorder = r } }
func WithMetrics(m Metrics) Option          { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a Service. Results are cached for at most ttl and
// never past their cachedUntil; ttl <= 0 disables caching.
func NewService(engine *health.Engine, builder SnapshotBuilder, ttl time.Duration, capacity int, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		builder:  builder,
		recorder: nopRecorder{},
		metrics:  nopMetrics{},
		now:      time.Now,
		log:      log.With().Str("component", "analysis").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	if ttl > 0 {
		s.results = cache.New[string, cached](ttl, capacity).WithClock(s.now)
	}
	return s
}

// AnalyzeUser builds the user's snapshot and analyzes it.
func (s *Service) AnalyzeUser(ctx context.Context, userID string) (*model.AnalysisResult, error) {
	snap, err := s.builder.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	return s.Analyze(ctx, snap)
}

// Analyze scores snap, serving a cached result for the same user and an
// identical snapshot while it is still valid.
func (s *Service) Analyze(ctx context.Context, snap *model.PortfolioSnapshot) (*model.AnalysisResult, error) {
	if snap == nil {
		return nil, health.ErrNilPortfolio
	}
	fp, err := fingerprint(snap)
	if err != nil {
		return nil, err
	}
	if res, ok := s.lookup(snap.UserID, fp); ok {
		return res, nil
	}

	start := time.Now()
	res, err := s.engine.Analyze(ctx, snap)
	s.metrics.ObserveAnalysis(snap.UserID, res, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if s.results != nil {
		s.results.Set(snap.UserID, cached{fingerprint: fp, result: res})
	}
	if err := s.recorder.RecordAnalysis(ctx, snap.UserID, res); err != nil {
		s.log.Error().Err(err).Str("user", snap.UserID).Msg("record analysis")
	}
	s.log.Debug().
		Str("user", snap.UserID).
		Int("score", res.HealthScore.Overall).
		Int("recommendations", len(res.Recommendations)).
		Msg("portfolio analyzed")
	return res, nil
}

func (s *Service) lookup(userID string, fp uint64) (*model.AnalysisResult, bool) {
	if s.results == nil {
		return nil, false
	}
	c, ok := s.results.Get(userID)
	hit := ok && c.fingerprint == fp && s.now().Before(c.result.Metadata.CachedUntil)
	s.metrics.CacheLookup(cacheName, hit)
	if !hit {
		return nil, false
	}
	return c.result, true
}

// Invalidate drops every cached result.
func (s *Service) Invalidate() {
	if s.results != nil {
		s.results.Clear()
	}
}

// Sweep removes expired cache entries.
func (s *Service) Sweep() int {
	if s.results == nil {
		return 0
	}
	return s.results.Sweep()
}

func fingerprint(snap *model.PortfolioSnapshot) (uint64, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("fingerprint snapshot: %w", err)
	}
	return xxhash.Sum64(b), nil
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(context.Context, string, *model.AnalysisResult) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveAnalysis(string, *model.AnalysisResult, time.Duration, error) {}
func (nopMetrics) CacheLookup(string, bool)                                            {}
