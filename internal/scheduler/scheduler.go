package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"CDPShield/internal/model"
	"CDPShield/internal/notifier"
)

// MarketCollector fetches fresh quotes.
type MarketCollector interface {
	Collect(ctx context.Context) (model.MarketData, error)
}

// QuoteSink receives refreshed quotes.
type QuoteSink interface {
	Update(md model.MarketData, at time.Time)
}

// PriceFeed publishes quotes to the testnet oracle.
type PriceFeed interface {
	PublishQuotes(md model.MarketData) (int, error)
}

// Analyzer produces the daily report.
type Analyzer interface {
	AnalyzeUser(ctx context.Context, userID string) (*model.AnalysisResult, error)
	Sweep() int
}

// AlertMonitor is the subset of the alert monitor the tasks drive.
type AlertMonitor interface {
	ForceCheck()
	ActiveAlerts() []model.VoiceAlert
	CleanupAlerts() int
	SweepCooldowns() int
}

// Assistant answers free-form commands.
type Assistant interface {
	Handle(text string) string
}

// Sender delivers Telegram messages.
type Sender interface {
	Configured() bool
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Metrics counts refresh runs.
type Metrics interface {
	MarketRefreshed(err error)
}

// Deps wires the scheduler to the rest of the service. Collector, Quotes,
// Feed and Metrics may be nil.
type Deps struct {
	Collector MarketCollector
	Quotes    QuoteSink
	Feed      PriceFeed
	Analyzer  Analyzer
	Monitor   AlertMonitor
	Assistant Assistant
	Notifier  Sender
	Metrics   Metrics
	UserID    string
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	Ctx context.Context
	now func() time.Time
	log zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Deps: deps,
		Ctx:  ctx,
		now:  time.Now,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule holds the cron specs, with seconds.
type Schedule struct {
	MarketCron  string
	ReportCron  string
	CleanupCron string
	SweepCron   string
}

// RegisterAll registers the market refresh, report, cleanup and sweep tasks.
func (s *Scheduler) RegisterAll(sch Schedule) error {
	tasks := []struct {
		name string
		spec string
		fn   func()
	}{
		{"market refresh", sch.MarketCron, s.RefreshMarket},
		{"daily report", sch.ReportCron, s.dailyReport},
		{"alert cleanup", sch.CleanupCron, s.cleanupAlerts},
		{"cache sweep", sch.SweepCron, s.sweepCaches},
	}
	for _, t := range tasks {
		if _, err := s.Cron.AddFunc(t.spec, t.fn); err != nil {
			return fmt.Errorf("register %s task: %w", t.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RefreshMarket collects quotes, stores them and publishes them to the oracle.
func (s *Scheduler) RefreshMarket() {
	if s.Collector == nil {
		return
	}
	md, err := s.Collector.Collect(s.Ctx)
	if s.Metrics != nil {
		s.Metrics.MarketRefreshed(err)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("market refresh failed")
		return
	}
	if s.Quotes != nil {
		s.Quotes.Update(md, s.now())
	}
	published := 0
	if s.Feed != nil {
		if published, err = s.Feed.PublishQuotes(md); err != nil {
			s.log.Error().Err(err).Msg("publish oracle prices")
		}
	}
	s.log.Info().Int("symbols", len(md)).Int("oracle_updates", published).Msg("market data refreshed")
}

// RunReportNow executes the report task immediately.
func (s *Scheduler) RunReportNow() {
	s.dailyReport()
}

func (s *Scheduler) dailyReport() {
	s.log.Info().Msg("running daily report")
	res, err := s.Analyzer.AnalyzeUser(s.Ctx, s.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("daily analysis failed")
		s.trySend("❌ 组合体检失败: " + html.EscapeString(err.Error()))
		return
	}
	s.trySend(notifier.FormatAnalysisReport(res))
}

func (s *Scheduler) cleanupAlerts() {
	if n := s.Monitor.CleanupAlerts(); n > 0 {
		s.log.Info().Int("removed", n).Msg("expired alerts purged")
	}
}

func (s *Scheduler) sweepCaches() {
	cooldowns := s.Monitor.SweepCooldowns()
	results := s.Analyzer.Sweep()
	if cooldowns+results > 0 {
		s.log.Debug().Int("cooldowns", cooldowns).Int("analyses", results).Msg("caches swept")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch strings.TrimSpace(command) {
	case "/report", "体检报告":
		res, err := s.Analyzer.AnalyzeUser(s.Ctx, s.UserID)
		if err != nil {
			return "❌ 组合体检失败: " + html.EscapeString(err.Error())
		}
		return notifier.FormatAnalysisReport(res)
	case "/forcecheck", "立即检查":
		s.Monitor.ForceCheck()
		return notifier.FormatAlerts(s.Monitor.ActiveAlerts(), s.now())
	case "/alerts", "查看预警":
		return notifier.FormatAlerts(s.Monitor.ActiveAlerts(), s.now())
	default:
		// replies go out as Telegram HTML and may quote the command back
		return html.EscapeString(s.Assistant.Handle(command))
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil || !s.Notifier.Configured() {
		s.log.Debug().Msg("telegram not configured, report not sent")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
