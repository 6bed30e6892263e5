package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *SimulationConfig {
	return &SimulationConfig{
		Components: []ComponentConfig{
			{
				Name:            "equities",
				Tickers:         []TickerRef{{Ticker: "VTI"}, {Ticker: "VNQ"}},
				LookbackMonths:  12,
				UseDualMomentum: true,
				MaxHoldings:     1,
				Weight:          0.6,
			},
			{
				Name:            "bonds",
				Tickers:         []TickerRef{{Ticker: "BND"}},
				LookbackMonths:  6,
				UseDualMomentum: false,
				MaxHoldings:     1,
				Weight:          0.4,
			},
		},
		MoneyMarketHolding: "SHY",
		Leverage:           1.0,
		TaxRates: TaxRates{
			FedShortTerm: 0.24, FedLongTerm: 0.15,
			StateShortTerm: 0.05, StateLongTerm: 0.05,
		},
		StartDate: "1997-12-01",
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateWeightSum(t *testing.T) {
	cfg := validConfig()
	cfg.Components[0].Weight = 0.5
	err := cfg.Validate()
	require.Error(t, err, "weights summing to 0.9 must fail")
	assert.True(t, IsConfigError(err))

	// Within tolerance of one basis point fraction.
	cfg.Components[0].Weight = 0.60004
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"no components", func(c *SimulationConfig) { c.Components = nil }},
		{"missing money market", func(c *SimulationConfig) { c.MoneyMarketHolding = "" }},
		{"bad start date", func(c *SimulationConfig) { c.StartDate = "Dec 1997" }},
		{"zero leverage", func(c *SimulationConfig) { c.Leverage = 0 }},
		{"leverage too high", func(c *SimulationConfig) { c.Leverage = 1000 }},
		{"negative spread with leverage", func(c *SimulationConfig) {
			c.Leverage = 2
			c.BorrowingSpread = -1
		}},
		{"duplicate component name", func(c *SimulationConfig) { c.Components[1].Name = "equities" }},
		{"component without tickers", func(c *SimulationConfig) { c.Components[0].Tickers = nil }},
		{"buy-and-hold with two tickers", func(c *SimulationConfig) {
			c.Components[1].Tickers = []TickerRef{{Ticker: "BND"}, {Ticker: "SHY"}}
		}},
		{"max holdings out of range", func(c *SimulationConfig) { c.Components[0].MaxHoldings = 3 }},
		{"zero lookback", func(c *SimulationConfig) { c.Components[0].LookbackMonths = 0 }},
		{"weight above one", func(c *SimulationConfig) { c.Components[0].Weight = 1.4 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "validation failures are ConfigErrors")
		})
	}
}

func TestLeveragedConfigNeedsSpread(t *testing.T) {
	cfg := validConfig()
	cfg.Leverage = 2
	cfg.BorrowingSpread = 1.5
	assert.NoError(t, cfg.Validate())
}

func TestMaxLookbackMonths(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 12, cfg.MaxLookbackMonths(), "buy-and-hold lookbacks do not count")

	cfg.Components[0].UseDualMomentum = false
	assert.Equal(t, 0, cfg.MaxLookbackMonths())
}

func TestHashDeterministic(t *testing.T) {
	a, b := validConfig(), validConfig()
	assert.Equal(t, a.Hash(), b.Hash(), "equal configurations share a hash")

	// Component order does not matter; the serialization sorts by name.
	b.Components[0], b.Components[1] = b.Components[1], b.Components[0]
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestHashSensitivity(t *testing.T) {
	base := validConfig().Hash()

	cfg := validConfig()
	cfg.Leverage = 1.5
	cfg.BorrowingSpread = 1.0
	assert.NotEqual(t, base, cfg.Hash(), "leverage changes the identity")

	cfg = validConfig()
	cfg.Components[0].Tickers = []TickerRef{{Ticker: "VNQ"}, {Ticker: "VTI"}}
	assert.NotEqual(t, base, cfg.Hash(), "ticker order is a momentum tie-break, so it changes the identity")

	cfg = validConfig()
	cfg.ForceRefresh = true
	assert.NotEqual(t, base, cfg.Hash())
}
