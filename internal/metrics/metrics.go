// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CDPShield/internal/model"
)

const namespace = "cdpshield"

// Registry holds all CDPShield metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry
	// scoredUser is the one user whose score is exported.
	scoredUser string

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	HealthScore      prometheus.Gauge
	AlertsEmitted    *prometheus.CounterVec
	HookFailures     *prometheus.CounterVec
	MarketRefreshes  *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
}

// NewRegistry creates and registers every metric. Only analyses of
// scoredUser move the health score gauge; user IDs come from request input
// and are never used as label values.
func NewRegistry(scoredUser string) *Registry {
	r := &Registry{
		reg:        prometheus.NewRegistry(),
		scoredUser: scoredUser,

		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Portfolio analyses by result",
			},
			[]string{"result"},
		),

		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time spent producing a portfolio analysis",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		HealthScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_score",
				Help:      "Latest overall health score of the monitored user",
			},
		),

		AlertsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_emitted_total",
				Help:      "Position alerts emitted by level",
			},
			[]string{"level"},
		),

		HookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifier_hook_failures_total",
				Help:      "Failed or panicking notification hooks",
			},
			[]string{"hook"},
		),

		MarketRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "market_refreshes_total",
				Help:      "Market data refresh runs by result",
			},
			[]string{"result"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and outcome",
			},
			[]string{"cache", "outcome"},
		),
	}

	r.reg.MustRegister(
		r.AnalysesTotal,
		r.AnalysisDuration,
		r.HealthScore,
		r.AlertsEmitted,
		r.HookFailures,
		r.MarketRefreshes,
		r.CacheLookups,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and pushers.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveAnalysis records one analysis attempt.
func (r *Registry) ObserveAnalysis(userID string, res *model.AnalysisResult, took time.Duration, err error) {
	r.AnalysisDuration.Observe(took.Seconds())
	if err != nil {
		r.AnalysesTotal.WithLabelValues("error").Inc()
		return
	}
	r.AnalysesTotal.WithLabelValues("ok").Inc()
	if userID == r.scoredUser {
		r.HealthScore.Set(float64(res.HealthScore.Overall))
	}
}

func (r *Registry) AlertEmitted(level model.AlertLevel) {
	r.AlertsEmitted.WithLabelValues(string(level)).Inc()
}

func (r *Registry) HookFailed(hook string) {
	r.HookFailures.WithLabelValues(hook).Inc()
}

// MarketRefreshed counts a refresh run.
func (r *Registry) MarketRefreshed(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.MarketRefreshes.WithLabelValues(result).Inc()
}

// CacheLookup counts a hit or miss on the named cache.
func (r *Registry) CacheLookup(cache string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.CacheLookups.WithLabelValues(cache, outcome).Inc()
}
