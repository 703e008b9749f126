package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/alert"
	"CDPShield/internal/analysis"
	"CDPShield/internal/assistant"
	"CDPShield/internal/health"
	"CDPShield/internal/metrics"
	"CDPShield/internal/model"
	"CDPShield/internal/notifier"
	"CDPShield/internal/portfolio"
	"CDPShield/internal/positions"
	"CDPShield/internal/recorder"
	"CDPShield/internal/testnet"
)

type env struct {
	srv     *httptest.Server
	store   *positions.Store
	monitor *alert.Monitor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zerolog.Nop()
	now := func() time.Time { return time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC) }

	store, err := positions.NewStore("", log, positions.WithClock(now))
	require.NoError(t, err)
	require.NoError(t, store.Set(portfolio.DemoCDPs(now())))

	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	reg := metrics.NewRegistry("demo")
	mon, err := alert.NewMonitor(alert.DefaultConfig(), store, log,
		alert.WithNotifier(notifier.NewDispatcher(nil, log)),
		alert.WithRecorder(rec),
		alert.WithMetrics(reg),
		alert.WithClock(now))
	require.NoError(t, err)
	mon.Start()
	t.Cleanup(mon.Stop)

	network := testnet.NewDemoNetwork(now)
	book := portfolio.NewQuoteBook(portfolio.DemoMarketData(), nil, nil)
	builder := portfolio.NewBuilder(store, portfolio.DemoHoldings(), book, log)
	svc := analysis.NewService(health.NewEngine(health.WithClock(now)), builder, time.Minute, 8, log,
		analysis.WithRecorder(rec), analysis.WithMetrics(reg), analysis.WithClock(now))

	s := New(Config{
		Log:       log,
		Analysis:  svc,
		Positions: store,
		Monitor:   mon,
		Assistant: assistant.New(store, mon, log),
		Network:   network,
		Recorder:  rec,
		Metrics:   reg.Handler(),
		UserID:    "demo",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store, monitor: mon}
}

func (e *env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["monitor"].(map[string]any)["running"])
}

func TestAnalyze(t *testing.T) {
	e := newEnv(t)

	snap := portfolio.Assemble("alice", portfolio.DemoCDPs(time.Now()), portfolio.DemoHoldings().Data, portfolio.DemoMarketData())
	resp := e.do(t, http.MethodPost, "/api/analyze", snap)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[model.AnalysisResult](t, resp)
	assert.Equal(t, 62, res.HealthScore.Overall)
	assert.Equal(t, health.ModelName, res.Metadata.Model)

	resp = e.do(t, http.MethodPost, "/api/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/portfolio/analysis", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[model.AnalysisResult](t, resp)
	assert.Equal(t, model.LevelFair, res.HealthScore.Level)
	assert.Len(t, res.Recommendations, 5)

	resp = e.do(t, http.MethodGet, "/api/history/analyses?user=alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[[]recorder.AnalysisRecord](t, resp)
	require.Len(t, hist, 1)
	assert.Equal(t, 62, hist[0].Overall)
}

func TestPositionsCRUD(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/api/positions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.CDPPosition](t, resp), 2)

	resp = e.do(t, http.MethodPatch, "/api/positions/cdp-2", map[string]any{"healthFactor": 1.8, "id": "hijack"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[model.CDPPosition](t, resp)
	assert.Equal(t, "cdp-2", p.ID)
	assert.Equal(t, 1.8, p.HealthFactor)
	assert.Equal(t, "WETH", p.Collateral.Symbol, "unpatched fields are kept")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPatch, "/api/positions/nope", map[string]any{}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPatch, "/api/positions/cdp-2", "[").StatusCode)

	resp = e.do(t, http.MethodPost, "/api/positions", model.CDPPosition{ID: "cdp-3", Protocol: "aave", HealthFactor: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, decode[model.CDPPosition](t, resp).CreatedAt.IsZero())
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/positions", model.CDPPosition{ID: "cdp-3"}).StatusCode)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/positions/cdp-3", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/positions/cdp-3", nil).StatusCode)

	dup := []model.CDPPosition{{ID: "x"}, {ID: "x"}}
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPut, "/api/positions", dup).StatusCode)

	resp = e.do(t, http.MethodPut, "/api/positions", []model.CDPPosition{{ID: "only", HealthFactor: 2}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, e.store.List(), 1)
}

func TestAlertsFlow(t *testing.T) {
	e := newEnv(t)

	// cdp-1 starts at HF 1.28, a warning.
	resp := e.do(t, http.MethodGet, "/api/alerts", nil)
	alerts := decode[[]model.VoiceAlert](t, resp)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertWarning, alerts[0].Level)

	resp = e.do(t, http.MethodPost, "/api/alerts/simulate", simulateRequest{PositionID: "cdp-1", HealthFactor: 1.05})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alerts = decode[[]model.VoiceAlert](t, resp)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertCritical, alerts[0].Level)
	assert.Equal(t, 1.05, alerts[0].HealthFactor)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/alerts/simulate", simulateRequest{PositionID: "cdp-1"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/alerts/simulate", simulateRequest{PositionID: "nope", HealthFactor: 1}).StatusCode)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/api/alerts/"+alerts[0].ID+"/dismiss", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/alerts/unknown/dismiss", nil).StatusCode)
	assert.Empty(t, decode[[]model.VoiceAlert](t, e.do(t, http.MethodGet, "/api/alerts", nil)))
	assert.Len(t, decode[[]model.VoiceAlert](t, e.do(t, http.MethodGet, "/api/alerts?all=1", nil)), 1)

	resp = e.do(t, http.MethodPost, "/api/alerts/force-check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.VoiceAlert](t, resp), 1, "force check re-alerts the still critical position")

	hist := decode[[]recorder.AlertRecord](t, e.do(t, http.MethodGet, "/api/history/alerts", nil))
	assert.Len(t, hist, 3)

	resp = e.do(t, http.MethodPut, "/api/alerts/language", map[string]string{"language": "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.LangEN, decode[alert.Status](t, resp).Language)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/alerts/language", map[string]string{"language": "fr"}).StatusCode)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/alerts", nil).StatusCode)
	assert.Empty(t, e.monitor.Alerts())
}

func TestAssistant(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/api/assistant", map[string]string{"text": "show my positions"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[assistant.Reply](t, resp)
	assert.Equal(t, assistant.IntentPositions, reply.Intent)
	assert.Equal(t, model.LangEN, reply.Language)
	assert.Contains(t, reply.Response, "moonwell")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/assistant", map[string]string{}).StatusCode)
}

func TestOracleAndFaucet(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/api/oracle/prices/weth", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pr := decode[map[string]any](t, resp)
	assert.Equal(t, "2500", pr["price"])
	assert.Equal(t, false, pr["stale"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/oracle/prices/DOGE", nil).StatusCode)
	assert.Len(t, decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/oracle/prices", nil)), 3)

	resp = e.do(t, http.MethodPost, "/api/faucet/usdc", map[string]string{"address": "0xabc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bal := decode[map[string]any](t, resp)
	assert.Equal(t, "10000", bal["minted"])
	assert.Equal(t, "USDC", bal["symbol"])

	assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/api/faucet/USDC", map[string]string{"address": "0xabc"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/faucet/DOGE", map[string]string{"address": "0xabc"}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/faucet/USDC", map[string]string{}).StatusCode)

	bal = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/tokens/USDC/balances/0xabc", nil))
	assert.Equal(t, "10000", bal["balance"])
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `cdpshield_alerts_emitted_total{level="warning"} 1`)
}
