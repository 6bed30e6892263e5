package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/dualmomentum/internal/app"
	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
	"github.com/sawpanic/dualmomentum/internal/metrics"
	"github.com/sawpanic/dualmomentum/internal/resultcache"
)

func testServer() *Server {
	start := data.Month{Year: 2020, Mon: time.January}
	bars := func(closes ...float64) []data.Bar {
		out := make([]data.Bar, len(closes))
		for i, c := range closes {
			out[i] = data.Bar{Close: c, AdjClose: c}
		}
		return out
	}
	provider := &data.StaticProvider{Series: map[string]data.Series{
		"VTI": {Ticker: "VTI", Start: start, Bars: bars(100, 110, 105)},
		"SHY": {Ticker: "SHY", Start: start, Bars: bars(100, 100, 100)},
		"SPY": {Ticker: "SPY", Start: start, Bars: bars(100, 102, 104)},
	}}
	reg := metrics.NewRegistry()
	runner := app.NewRunner(provider, &data.StaticRates{}, config.DefaultCatalog(),
		resultcache.New(nil), reg)
	return NewServer(runner, reg)
}

const goodRequest = `{
	"components": [{
		"name": "equities",
		"tickers": [{"ticker": "VTI"}],
		"lookbackMonths": 12,
		"useDualMomentum": false,
		"maxHoldings": 1,
		"weight": 1.0
	}],
	"moneyMarketHolding": "SHY",
	"leverage": 1.0,
	"taxRates": {},
	"startDate": "2020-01-01"
}`

func TestBacktestEndpoint(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader(goodRequest))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), "every response carries a request id")

	var result app.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Hash)
	require.NotNil(t, result.Summary)
	assert.InDelta(t, 0.05, result.Summary.StrategyPretax.TotalReturn, 1e-9)
}

func TestBacktestEchoesRequestID(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader(goodRequest))
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestBacktestInvalidConfigIs400(t *testing.T) {
	srv := testServer()
	body := strings.Replace(goodRequest, `"weight": 1.0`, `"weight": 0.5`, 1)
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "config_error", e.Kind)
	assert.NotEmpty(t, e.Message)
}

func TestBacktestMalformedJSONIs400(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestMissingDataIs502(t *testing.T) {
	srv := testServer()
	body := strings.Replace(goodRequest,
		`{"ticker": "VTI"}`, `{"ticker": "GHOST", "taxCategory": "equities"}`, 1)
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "data_unavailable", e.Kind)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer()

	// Run one backtest first so the counters have samples.
	req := httptest.NewRequest(http.MethodPost, "/v1/backtest", strings.NewReader(goodRequest))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dualmomentum_runs_total")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/backtest", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
