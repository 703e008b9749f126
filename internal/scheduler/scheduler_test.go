package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/model"
)

type fakeCollector struct {
	md  model.MarketData
	err error
}

func (f *fakeCollector) Collect(context.Context) (model.MarketData, error) { return f.md, f.err }

type fakeQuotes struct{ got model.MarketData }

func (f *fakeQuotes) Update(md model.MarketData, _ time.Time) { f.got = md }

type fakeFeed struct{ calls int }

func (f *fakeFeed) PublishQuotes(md model.MarketData) (int, error) {
	f.calls++
	return len(md), nil
}

type fakeAnalyzer struct {
	err    error
	users  []string
	sweeps int
}

func (f *fakeAnalyzer) AnalyzeUser(_ context.Context, userID string) (*model.AnalysisResult, error) {
	f.users = append(f.users, userID)
	if f.err != nil {
		return nil, f.err
	}
	return &model.AnalysisResult{HealthScore: model.HealthScore{Overall: 62, Level: model.LevelFair}}, nil
}

func (f *fakeAnalyzer) Sweep() int { f.sweeps++; return 0 }

type fakeMonitor struct {
	forced, cleaned, swept int
	active                 []model.VoiceAlert
}

func (f *fakeMonitor) ForceCheck()                      { f.forced++ }
func (f *fakeMonitor) ActiveAlerts() []model.VoiceAlert { return f.active }
func (f *fakeMonitor) CleanupAlerts() int               { f.cleaned++; return 1 }
func (f *fakeMonitor) SweepCooldowns() int              { f.swept++; return 2 }

type echoAssistant struct{}

func (echoAssistant) Handle(text string) string { return "assistant: " + text }

type fakeSender struct {
	configured bool
	sent       []string
}

func (f *fakeSender) Configured() bool { return f.configured }
func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.sent = append(f.sent, text)
	return nil
}

type refreshCounter struct{ ok, failed int }

func (r *refreshCounter) MarketRefreshed(err error) {
	if err != nil {
		r.failed++
	} else {
		r.ok++
	}
}

type fixture struct {
	s        *Scheduler
	col      *fakeCollector
	quotes   *fakeQuotes
	feed     *fakeFeed
	analyzer *fakeAnalyzer
	monitor  *fakeMonitor
	sender   *fakeSender
	metrics  *refreshCounter
}

func newFixture() *fixture {
	f := &fixture{
		col:      &fakeCollector{md: model.MarketData{"ETH": {Price: 3500}}},
		quotes:   &fakeQuotes{},
		feed:     &fakeFeed{},
		analyzer: &fakeAnalyzer{},
		monitor:  &fakeMonitor{},
		sender:   &fakeSender{configured: true},
		metrics:  &refreshCounter{},
	}
	f.s = NewScheduler(context.Background(), Deps{
		Collector: f.col,
		Quotes:    f.quotes,
		Feed:      f.feed,
		Analyzer:  f.analyzer,
		Monitor:   f.monitor,
		Assistant: echoAssistant{},
		Notifier:  f.sender,
		Metrics:   f.metrics,
		UserID:    "demo",
	}, zerolog.Nop())
	return f
}

func TestRegisterAll(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.s.RegisterAll(Schedule{
		MarketCron:  "0 */5 * * * *",
		ReportCron:  "0 0 9 * * *",
		CleanupCron: "0 */10 * * * *",
		SweepCron:   "30 * * * * *",
	}))
	assert.Len(t, f.s.Cron.Entries(), 4)

	err := newFixture().s.RegisterAll(Schedule{MarketCron: "every minute"})
	assert.ErrorContains(t, err, "register market refresh task")
}

func TestRefreshMarket(t *testing.T) {
	f := newFixture()
	f.s.RefreshMarket()
	assert.Equal(t, 3500.0, f.quotes.got["ETH"].Price)
	assert.Equal(t, 1, f.feed.calls)
	assert.Equal(t, 1, f.metrics.ok)

	f.col.err = errors.New("yahoo down")
	f.quotes.got = nil
	f.s.RefreshMarket()
	assert.Nil(t, f.quotes.got)
	assert.Equal(t, 1, f.feed.calls)
	assert.Equal(t, 1, f.metrics.failed)
}

func TestDailyReport(t *testing.T) {
	f := newFixture()
	f.s.RunReportNow()
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0], "健康分: <b>62</b>")
	assert.Equal(t, []string{"demo"}, f.analyzer.users)

	f.analyzer.err = errors.New("no holdings")
	f.s.RunReportNow()
	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[1], "no holdings")

	f.sender.configured = false
	f.s.RunReportNow()
	assert.Len(t, f.sender.sent, 2)
}

func TestMaintenanceTasks(t *testing.T) {
	f := newFixture()
	f.s.cleanupAlerts()
	f.s.sweepCaches()
	assert.Equal(t, 1, f.monitor.cleaned)
	assert.Equal(t, 1, f.monitor.swept)
	assert.Equal(t, 1, f.analyzer.sweeps)
}

func TestHandleCommand(t *testing.T) {
	f := newFixture()
	f.monitor.active = []model.VoiceAlert{{Protocol: "moonwell", Level: model.AlertCritical, HealthFactor: 1.05, Timestamp: time.Now()}}

	assert.Contains(t, f.s.HandleCommand("/report"), "CDPShield")
	assert.Contains(t, f.s.HandleCommand(" /alerts "), "moonwell")
	assert.Equal(t, 0, f.monitor.forced)
	assert.Contains(t, f.s.HandleCommand("/forcecheck"), "HF 1.05")
	assert.Equal(t, 1, f.monitor.forced)
	assert.Equal(t, "assistant: what is my health factor", f.s.HandleCommand("what is my health factor"))
	assert.Equal(t, "assistant: a &lt;b&gt; &amp; c", f.s.HandleCommand("a <b> & c"))

	f.monitor.active = nil
	assert.Equal(t, "✅ 当前没有活跃预警", f.s.HandleCommand("查看预警"))
}
