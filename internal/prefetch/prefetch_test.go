package prefetch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
)

// countingProvider records which tickers were fetched.
type countingProvider struct {
	mu      sync.Mutex
	inner   data.Provider
	fetched []string
}

func (p *countingProvider) Fetch(ctx context.Context, ticker string) (data.Series, error) {
	p.mu.Lock()
	p.fetched = append(p.fetched, ticker)
	p.mu.Unlock()
	return p.inner.Fetch(ctx, ticker)
}

func flatSeries(ticker string) data.Series {
	return data.Series{
		Ticker: ticker,
		Start:  data.Month{Year: 2020, Mon: time.January},
		Bars:   []data.Bar{{Close: 100, AdjClose: 100}},
	}
}

func dualMomentumConfig() *config.SimulationConfig {
	return &config.SimulationConfig{
		Components: []config.ComponentConfig{{
			Name:            "equities",
			Tickers:         []config.TickerRef{{Ticker: "VTI"}, {Ticker: "QQQ"}},
			LookbackMonths:  12,
			UseDualMomentum: true,
			MaxHoldings:     1,
			Weight:          1.0,
		}},
		MoneyMarketHolding: "SHY",
		Leverage:           1.0,
		StartDate:          "2005-01-01",
	}
}

func TestResolveExpandsReplacementChains(t *testing.T) {
	c := New(&data.StaticProvider{}, config.DefaultCatalog(), Options{})

	tickers, err := c.Resolve(dualMomentumConfig())
	require.NoError(t, err)

	// VTI and SPY chain to VFINX; QQQ chains to RYOCX and then the unit
	// placeholder, which is never fetched.
	assert.Contains(t, tickers, "VTI")
	assert.Contains(t, tickers, "SPY")
	assert.Contains(t, tickers, "VFINX")
	assert.Contains(t, tickers, "QQQ")
	assert.Contains(t, tickers, "RYOCX")
	assert.Contains(t, tickers, "SHY")
	assert.NotContains(t, tickers, config.PlaceholderTicker)

	seen := make(map[string]bool)
	for _, ticker := range tickers {
		assert.False(t, seen[ticker], "ticker %s resolved twice", ticker)
		seen[ticker] = true
	}
}

func TestResolveCyclicChainFails(t *testing.T) {
	cat, err := config.LoadCatalog(writeCatalog(t, `
tickers:
  A:
    tax_category: equities
    early_replacement: B
  B:
    tax_category: equities
    early_replacement: A
`))
	require.NoError(t, err)

	cfg := dualMomentumConfig()
	cfg.Components[0].Tickers = []config.TickerRef{{Ticker: "A"}}
	c := New(&data.StaticProvider{}, cat, Options{})

	_, err = c.Resolve(cfg)
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

func TestWarmFetchesEveryTicker(t *testing.T) {
	provider := &countingProvider{inner: &data.StaticProvider{Series: map[string]data.Series{
		"VTI": flatSeries("VTI"),
		"SHY": flatSeries("SHY"),
		"SPY": flatSeries("SPY"),
	}}}
	c := New(provider, config.DefaultCatalog(), Options{RequestsPerSecond: 1000, Burst: 10})

	err := c.Warm(context.Background(), []string{"VTI", "SHY", "SPY"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"VTI", "SHY", "SPY"}, provider.fetched)
}

func TestWarmReportsFirstFailureAfterFanIn(t *testing.T) {
	provider := &countingProvider{inner: &data.StaticProvider{Series: map[string]data.Series{
		"VTI": flatSeries("VTI"),
		"SHY": flatSeries("SHY"),
	}}}
	c := New(provider, config.DefaultCatalog(), Options{RequestsPerSecond: 1000, Burst: 10})

	err := c.Warm(context.Background(), []string{"VTI", "MISSING", "SHY"})
	require.Error(t, err)
	assert.True(t, data.IsUnavailable(err))
	assert.Len(t, provider.fetched, 3, "a failure never cancels the other workers")
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
