package config

import (
	"crypto/md5"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Reserved ticker names understood by every layer.
const (
	// CashHolding marks an out-of-market month inside a holding set.
	CashHolding = "CASH"
	// PlaceholderTicker is the unit-value calendar scaffold; it is never
	// fetched from a provider.
	PlaceholderTicker = "ONES"
	// RiskFreeTicker names the t-bill series used as the momentum hurdle.
	RiskFreeTicker = "TBIL"
	// BenchmarkTicker is the broad-equity reference carried through every
	// run for summary comparison.
	BenchmarkTicker = "SPY"
)

// TickerRef names one candidate asset inside a component and the tax
// category its gains fall under. An empty TaxCategory defers to the
// ticker catalog.
type TickerRef struct {
	Ticker      string `json:"ticker" yaml:"ticker"`
	TaxCategory string `json:"taxCategory,omitempty" yaml:"tax_category,omitempty"`
}

// ComponentConfig describes one weighted sleeve of the portfolio.
type ComponentConfig struct {
	Name            string      `json:"name" yaml:"name"`
	Tickers         []TickerRef `json:"tickers" yaml:"tickers"`
	LookbackMonths  int         `json:"lookbackMonths" yaml:"lookback_months"`
	UseDualMomentum bool        `json:"useDualMomentum" yaml:"use_dual_momentum"`
	MaxHoldings     int         `json:"maxHoldings" yaml:"max_holdings"`
	Weight          float64     `json:"weight" yaml:"weight"`
}

// TaxRates carries the four marginal rates the category table is built
// from. All values are fractions, e.g. 0.22 for 22%.
type TaxRates struct {
	FedShortTerm   float64 `json:"fedShortTerm" yaml:"fed_short_term"`
	FedLongTerm    float64 `json:"fedLongTerm" yaml:"fed_long_term"`
	StateShortTerm float64 `json:"stateShortTerm" yaml:"state_short_term"`
	StateLongTerm  float64 `json:"stateLongTerm" yaml:"state_long_term"`
}

// SimulationConfig is the full, immutable input of one backtest run.
type SimulationConfig struct {
	Components         []ComponentConfig `json:"components" yaml:"components"`
	MoneyMarketHolding string            `json:"moneyMarketHolding" yaml:"money_market_holding"`
	Leverage           float64           `json:"leverage" yaml:"leverage"`
	// BorrowingSpread is the markup over the reference short rate paid on
	// borrowed capital, in percentage points (1.5 means ref+1.5%).
	BorrowingSpread float64  `json:"borrowingSpreadAboveReferenceRate" yaml:"borrowing_spread"`
	TaxRates        TaxRates `json:"taxRates" yaml:"tax_rates"`
	StartDate       string   `json:"startDate" yaml:"start_date"`
	ForceRefresh    bool     `json:"forceRefresh,omitempty" yaml:"force_refresh,omitempty"`
}

var startDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const weightTolerance = 1e-4

// Validate checks every construction-time invariant and returns a
// ConfigError naming the first violated field. It must pass before any
// data fetch or simulation work happens.
func (c *SimulationConfig) Validate() error {
	if len(c.Components) == 0 {
		return errf("components", "at least one component is required")
	}
	if c.MoneyMarketHolding == "" {
		return errf("moneyMarketHolding", "money market holding is required")
	}
	if !startDateRe.MatchString(c.StartDate) {
		return errf("startDate", "want YYYY-MM-DD, got %q", c.StartDate)
	}
	if !(c.Leverage > 0 && c.Leverage < 1000) {
		return errf("leverage", "must be in (0, 1000), got %v", c.Leverage)
	}
	if c.Leverage > 1 && c.BorrowingSpread < 0 {
		return errf("borrowingSpreadAboveReferenceRate",
			"required and nonnegative when leverage exceeds 1, got %v", c.BorrowingSpread)
	}

	seen := make(map[string]bool, len(c.Components))
	weightSum := 0.0
	for i := range c.Components {
		comp := &c.Components[i]
		field := fmt.Sprintf("components[%d]", i)
		if comp.Name == "" {
			return errf(field+".name", "name is required")
		}
		if seen[comp.Name] {
			return errf(field+".name", "duplicate component name %q", comp.Name)
		}
		seen[comp.Name] = true
		if len(comp.Tickers) == 0 {
			return errf(field+".tickers", "at least one ticker is required")
		}
		if !comp.UseDualMomentum && len(comp.Tickers) != 1 {
			return errf(field+".tickers",
				"buy-and-hold takes exactly one ticker, got %d", len(comp.Tickers))
		}
		if comp.MaxHoldings != 1 && comp.MaxHoldings != 2 {
			return errf(field+".maxHoldings", "must be 1 or 2, got %d", comp.MaxHoldings)
		}
		if comp.LookbackMonths <= 0 {
			return errf(field+".lookbackMonths", "must be positive, got %d", comp.LookbackMonths)
		}
		if comp.Weight < 0 || comp.Weight > 1 {
			return errf(field+".weight", "must be in [0, 1], got %v", comp.Weight)
		}
		weightSum += comp.Weight
	}
	if math.Abs(weightSum-1) > weightTolerance {
		return errf("components", "weights must sum to 1, got %v", weightSum)
	}
	return nil
}

// MaxLookbackMonths returns the longest lookback across dual-momentum
// components, the number of warm-up months the composite skips. Zero
// when every component is buy-and-hold.
func (c *SimulationConfig) MaxLookbackMonths() int {
	max := 0
	for i := range c.Components {
		if c.Components[i].UseDualMomentum && c.Components[i].LookbackMonths > max {
			max = c.Components[i].LookbackMonths
		}
	}
	return max
}

// Hash returns the deterministic identity of this configuration, the
// key repeated evaluations are cached under. It is built from a
// canonical serialization (components sorted by name; ticker order kept,
// since it breaks momentum ties) fed through md5. This is an identity
// key, not a security boundary.
func (c *SimulationConfig) Hash() string {
	parts := make([]string, 0, len(c.Components))
	for i := range c.Components {
		comp := &c.Components[i]
		tickers := make([]string, len(comp.Tickers))
		for j, t := range comp.Tickers {
			tickers[j] = t.Ticker + "/" + t.TaxCategory
		}
		parts = append(parts, fmt.Sprintf("%s|%s|%d|%t|%d|%v",
			comp.Name, strings.Join(tickers, ","), comp.LookbackMonths,
			comp.UseDualMomentum, comp.MaxHoldings, comp.Weight))
	}
	sort.Strings(parts)

	canonical := fmt.Sprintf("%s;mmh=%s;lev=%v;spread=%v;tax=%v/%v/%v/%v;start=%s;force=%t",
		strings.Join(parts, ";"), c.MoneyMarketHolding, c.Leverage, c.BorrowingSpread,
		c.TaxRates.FedShortTerm, c.TaxRates.FedLongTerm,
		c.TaxRates.StateShortTerm, c.TaxRates.StateLongTerm,
		c.StartDate, c.ForceRefresh)

	return fmt.Sprintf("%x", md5.Sum([]byte(canonical)))
}
