package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/health"
	"CDPShield/internal/model"
	"CDPShield/internal/portfolio"
	"CDPShield/internal/positions"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memRecorder struct {
	users []string
	err   error
}

func (r *memRecorder) RecordAnalysis(_ context.Context, userID string, _ *model.AnalysisResult) error {
	r.users = append(r.users, userID)
	return r.err
}

type lookups struct {
	hits, misses, analyses int
}

func (l *lookups) ObserveAnalysis(string, *model.AnalysisResult, time.Duration, error) { l.analyses++ }
func (l *lookups) CacheLookup(_ string, hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func newDemoService(t *testing.T, c *clock, opts ...Option) (*Service, *positions.Store) {
	t.Helper()
	store, err := positions.NewStore("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Set(portfolio.DemoCDPs(c.now())))
	b := portfolio.NewBuilder(store, portfolio.DemoHoldings(), portfolio.NewQuoteBook(portfolio.DemoMarketData(), nil, nil), zerolog.Nop())
	engine := health.NewEngine(health.WithClock(c.now))
	opts = append(opts, WithClock(c.now))
	return NewService(engine, b, 10*time.Minute, 16, zerolog.Nop(), opts...), store
}

func TestAnalyzeUser_CachesUntilCachedUntil(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)}
	rec := &memRecorder{}
	m := &lookups{}
	svc, _ := newDemoService(t, c, WithRecorder(rec), WithMetrics(m))

	first, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 62, first.HealthScore.Overall)

	c.advance(time.Minute)
	second, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.Same(t, first, second)

	c.advance(health.ResultTTL)
	third, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.NotSame(t, first, third, "result past cachedUntil is recomputed")

	assert.Equal(t, []string{"demo", "demo"}, rec.users)
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 2, m.misses)
	assert.Equal(t, 2, m.analyses)
}

func TestAnalyze_ChangedSnapshotMisses(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)}
	svc, store := newDemoService(t, c)

	first, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)

	_, err = store.Update("cdp-1", func(p *model.CDPPosition) { p.HealthFactor = 1.05 })
	require.NoError(t, err)

	second, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Less(t, second.HealthScore.Breakdown.Risk, first.HealthScore.Breakdown.Risk)
}

func TestAnalyze_InvalidateAndSweep(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)}
	svc, _ := newDemoService(t, c)

	first, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	svc.Invalidate()
	second, err := svc.AnalyzeUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	assert.Equal(t, 0, svc.Sweep())
	c.advance(11 * time.Minute)
	assert.Equal(t, 1, svc.Sweep())
}

func TestAnalyze_RecorderFailureIsLogged(t *testing.T) {
	c := &clock{t: time.Now()}
	svc, _ := newDemoService(t, c, WithRecorder(&memRecorder{err: errors.New("disk full")}))
	_, err := svc.AnalyzeUser(context.Background(), "demo")
	assert.NoError(t, err)
}

func TestAnalyze_Errors(t *testing.T) {
	c := &clock{t: time.Now()}
	svc, _ := newDemoService(t, c)

	_, err := svc.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, health.ErrNilPortfolio)

	slow := NewService(health.NewEngine(health.WithDelay(time.Hour)), nil, 0, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Analyze(ctx, &model.PortfolioSnapshot{UserID: "u"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, slow.Sweep())
}
