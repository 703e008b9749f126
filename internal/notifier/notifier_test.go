package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/model"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]string
	failures int32
	server   *httptest.Server
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	f := &fakeBotAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if atomic.AddInt32(&f.failures, -1) >= 0 {
				http.Error(w, "flood", http.StatusTooManyRequests)
				return
			}
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			f.mu.Lock()
			f.sent = append(f.sent, payload)
			f.mu.Unlock()
			fmt.Fprint(w, `{"ok":true}`)
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if r.URL.Query().Get("offset") == "0" {
				fmt.Fprint(w, `{"ok":true,"result":[{"update_id":7,"message":{"text":" /alerts "}},{"update_id":8}]}`)
				return
			}
			<-r.Context().Done()
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBotAPI) Sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newTestTelegram(api *fakeBotAPI) *Telegram {
	tg := NewTelegram("TOKEN", "42", "", zerolog.Nop())
	tg.APIBase = api.server.URL
	return tg
}

func TestTelegram_Send(t *testing.T) {
	api := newFakeBotAPI(t)
	tg := newTestTelegram(api)

	require.NoError(t, tg.Send(context.Background(), "<b>hi</b>"))
	sent := api.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "HTML", sent[0]["parse_mode"])
	assert.Equal(t, "<b>hi</b>", sent[0]["text"])
}

func TestTelegram_SendWithBackoffRetries(t *testing.T) {
	api := newFakeBotAPI(t)
	atomic.StoreInt32(&api.failures, 2)
	tg := newTestTelegram(api)

	require.NoError(t, tg.sendWithBackoff(context.Background(), "x", 2, time.Millisecond))
	assert.Len(t, api.Sent(), 1)

	atomic.StoreInt32(&api.failures, 5)
	err := tg.sendWithBackoff(context.Background(), "x", 1, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestTelegram_Polling(t *testing.T) {
	api := newFakeBotAPI(t)
	tg := newTestTelegram(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var got []string
	go func() {
		defer close(done)
		tg.StartPolling(ctx, func(cmd string) string {
			got = append(got, cmd)
			return "reply to " + cmd
		})
	}()

	require.Eventually(t, func() bool { return len(api.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"/alerts"}, got)
	assert.Equal(t, "reply to /alerts", api.Sent()[0]["text"])
}

func TestDispatcher_Capabilities(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	caps := d.Capabilities()
	assert.True(t, caps.Sound)
	assert.True(t, caps.Vibration)
	assert.False(t, caps.Speech)
	assert.ErrorIs(t, d.Speak(context.Background(), "x", model.LangEN), ErrSpeechUnavailable)

	d = NewDispatcher(NewTelegram("TOKEN", "42", "", zerolog.Nop()), zerolog.Nop())
	assert.True(t, d.Capabilities().Speech)
}

func TestDispatcher_SpeakOutlivesCallerContext(t *testing.T) {
	api := newFakeBotAPI(t)
	d := NewDispatcher(newTestTelegram(api), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Speak(ctx, "紧急警报", model.LangZH))
	cancel()
	d.Wait()

	sent := api.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "紧急警报", sent[0]["text"])
}

func TestDispatcher_SpeakEscapesHTML(t *testing.T) {
	api := newFakeBotAPI(t)
	d := NewDispatcher(newTestTelegram(api), zerolog.Nop())

	require.NoError(t, d.Speak(context.Background(), "Critical alert! Aave<v3> & co", model.LangEN))
	d.Wait()

	sent := api.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "HTML", sent[0]["parse_mode"])
	assert.Equal(t, "Critical alert! Aave&lt;v3&gt; &amp; co", sent[0]["text"])
}

func TestDispatcher_SoundAndVibrationPatterns(t *testing.T) {
	var buf strings.Builder
	d := NewDispatcher(nil, zerolog.New(&buf))

	require.NoError(t, d.PlaySound(model.AlertCritical))
	require.NoError(t, d.Vibrate(model.AlertWarning))
	require.NoError(t, d.PlaySound(model.AlertCaution))

	out := buf.String()
	assert.Contains(t, out, `"frequency_hz":880`)
	assert.Contains(t, out, `"waveform":"square"`)
	assert.Contains(t, out, `"pattern_ms":[200,100,200]`)
	assert.Equal(t, 2, strings.Count(out, "\n"), "caution makes no sound")
}

func TestFormatAnalysisReport(t *testing.T) {
	res := &model.AnalysisResult{
		HealthScore: model.HealthScore{Overall: 62, Level: model.LevelFair,
			Breakdown: model.ScoreBreakdown{Risk: 85, Efficiency: 44, Diversification: 33}},
		Recommendations: []model.Recommendation{{
			ID: "idle-0", Priority: model.PriorityOpportunity,
			Title: "USDC idle funds: $2,340", Description: "Deposit <now>",
			Impact: model.Impact{Value: "+$98/year"},
		}},
		Insights: model.Insights{TotalValue: 20565.4, PositionCount: 4, ProtocolCount: 1,
			Compared: model.Comparison{Percentile: 45, Message: "Your portfolio is performing better than 45% of users."}},
		Metadata: model.AnalysisMetadata{AnalyzedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
	}
	out := FormatAnalysisReport(res)
	assert.Contains(t, out, "2026-01-02 08:00")
	assert.Contains(t, out, "健康分: <b>62</b> (fair)")
	assert.Contains(t, out, "$20,565")
	assert.Contains(t, out, "💰 USDC idle funds: $2,340")
	assert.Contains(t, out, "Deposit &lt;now&gt;")
	assert.Contains(t, out, "45% of users")
}

func TestFormatAlerts(t *testing.T) {
	now := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "✅ 当前没有活跃预警", FormatAlerts(nil, now))

	out := FormatAlerts([]model.VoiceAlert{
		{Protocol: "aave", Level: model.AlertCaution, HealthFactor: 1.4, Timestamp: now.Add(-time.Hour)},
		{Protocol: "moonwell", Level: model.AlertCritical, HealthFactor: 1.05, Timestamp: now.Add(-time.Minute)},
	}, now)
	assert.Contains(t, out, "(2)")
	assert.Less(t, strings.Index(out, "moonwell"), strings.Index(out, "aave"))
	assert.Contains(t, out, "HF 1.05")
}

func TestFormatMarketSummary(t *testing.T) {
	out := FormatMarketSummary(model.MarketData{
		"USDC": {Price: 1, Change24h: 0.01},
		"ETH":  {Price: 3500.5, Change24h: -2.5, Volatility: 0.61},
	})
	assert.Less(t, strings.Index(out, "ETH"), strings.Index(out, "USDC"))
	assert.Contains(t, out, "ETH: $3,500.5 (-2.50%, 波动率 0.61)")
}
