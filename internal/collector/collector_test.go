package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/model"
)

func TestCollect_MockFetcher(t *testing.T) {
	f := NewMockFetcher()
	f.Now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	c := NewCollector(f, []string{"eth", "USDC", "DOGE"}, zerolog.Nop())

	md, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Contains(t, md, "ETH")
	require.Contains(t, md, "USDC")
	assert.NotContains(t, md, "DOGE")
	assert.Equal(t, 3500.0, md["ETH"].Price)
	assert.Greater(t, md["ETH"].Volatility, 0.0)
	assert.Less(t, md["ETH"].Volatility, 0.5)
	assert.Greater(t, md["ETH"].Change24h, 0.0)
}

func TestCollect_AllFail(t *testing.T) {
	c := NewCollector(NewMockFetcher(), []string{"DOGE"}, zerolog.Nop())
	_, err := c.Collect(context.Background())
	assert.Error(t, err)
}

func TestCollect_ExplicitBars(t *testing.T) {
	f := &MockFetcher{
		Prices: map[string]float64{"ETH": 110},
		DailyData: map[string][]model.OHLCV{
			"ETH": {{Close: 100}, {Close: 100}, {Close: 110}},
		},
	}
	md, err := NewCollector(f, []string{"ETH"}, zerolog.Nop()).Collect(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, md["ETH"].Change24h, 1e-9)
}

func TestGenerateMockBars_EndsOnBasePrice(t *testing.T) {
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	bars := generateMockBars(100, 0.01, 5, end)
	require.Len(t, bars, 5)
	assert.Equal(t, 100.0, bars[4].Close)
	assert.Equal(t, end, bars[4].Time)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func yahooStub(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/ETH-USD") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
			return
		}
		if r.URL.Query().Get("interval") == "5m" {
			fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":3433.5},"timestamp":[1700172800],
			"indicators":{"quote":[{"close":[3429]}]}}],"error":null}}`)
			return
		}
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1700086400,1700000000,1700172800],
			"indicators":{"quote":[{"open":[3400,3300,null],"high":[3450,3350,null],"low":[3350,3250,null],
			"close":[3420,3310,null],"volume":[10,20,null]}]}}],"error":null}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooFetcher(t *testing.T) {
	srv := yahooStub(t)
	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	bars, err := f.FetchDailyBars(context.Background(), "weth", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2, "null bar is skipped")
	assert.Equal(t, 3310.0, bars[0].Close, "bars are sorted chronologically")

	price, err := f.FetchCurrentPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 3433.5, price, "live meta price wins over the last close")

	_, err = f.FetchCurrentPrice(context.Background(), "DOGE")
	assert.Error(t, err)
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/quote":
			fmt.Fprint(w, `{"price": 1.001}`)
		case "/api/v1/bars/daily":
			fmt.Fprint(w, `[{"timestamp":200,"close":2},{"timestamp":100,"close":1}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "k", "")
	price, err := f.FetchCurrentPrice(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, 1.001, price)

	bars, err := f.FetchDailyBars(context.Background(), "USDC", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)
}
