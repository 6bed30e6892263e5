package backtest

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
)

// Composite blends the configured components by weight, sweeps idle
// cash into the money-market holding, applies leverage and its
// borrowing cost, and settles deferred taxes at each December.
type Composite struct {
	cfg              *config.SimulationConfig
	components       []*Component
	moneyMarket      *Component
	benchmark        *Component
	maxLookbackMonth int
}

// NewComposite validates the full configuration and constructs every
// component, including the internal buy-and-hold tracks for the
// money-market holding and the benchmark. All configuration errors
// surface here, before any data is touched.
func NewComposite(cfg *config.SimulationConfig, cat *config.Catalog) (*Composite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var refs []config.TickerRef
	for i := range cfg.Components {
		refs = append(refs, cfg.Components[i].Tickers...)
	}
	taxes, err := config.RatesByTicker(cfg.TaxRates, cat, refs,
		cfg.MoneyMarketHolding, config.RiskFreeTicker, config.BenchmarkTicker)
	if err != nil {
		return nil, err
	}

	c := &Composite{cfg: cfg, maxLookbackMonth: cfg.MaxLookbackMonths()}
	for i := range cfg.Components {
		comp, err := NewComponent(cfg.Components[i], cfg.MoneyMarketHolding, taxes)
		if err != nil {
			return nil, err
		}
		c.components = append(c.components, comp)
	}

	// The money-market holding and the benchmark run as plain
	// buy-and-hold components so their monthly returns are available for
	// the sweep and the summary comparison.
	c.moneyMarket, err = newReferenceComponent(cfg.MoneyMarketHolding, taxes)
	if err != nil {
		return nil, err
	}
	c.benchmark, err = newReferenceComponent(config.BenchmarkTicker, taxes)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newReferenceComponent(ticker string, taxes map[string]config.TaxTreatment) (*Component, error) {
	return NewComponent(config.ComponentConfig{
		Name:            "__" + ticker,
		Tickers:         []config.TickerRef{{Ticker: ticker}},
		LookbackMonths:  12,
		UseDualMomentum: false,
		MaxHoldings:     1,
	}, ticker, taxes)
}

// Tickers returns every ticker the composite itself simulates, before
// replacement-chain expansion.
func (c *Composite) Tickers() []string {
	seen := map[string]bool{
		c.cfg.MoneyMarketHolding: true,
		config.BenchmarkTicker:   true,
	}
	out := []string{c.cfg.MoneyMarketHolding, config.BenchmarkTicker}
	for i := range c.cfg.Components {
		for _, ref := range c.cfg.Components[i].Tickers {
			if !seen[ref.Ticker] {
				seen[ref.Ticker] = true
				out = append(out, ref.Ticker)
			}
		}
	}
	return out
}

// Run walks the composite timeline once. Components run first, each
// over its own sequential timeline; their outputs are blended in weight
// order, leveraged, swept, and taxed.
func (c *Composite) Run(m *Market) (*CompositeSeries, error) {
	n := m.Months()
	out := &CompositeSeries{
		MoneyMarketHolding: c.cfg.MoneyMarketHolding,
		Leverage:           c.cfg.Leverage,
		Start:              m.Start,
		SkippedMonths:      c.maxLookbackMonth,
		RiskFree:           make([]float64, n),
		States:             make([]CompositeMonthlyState, n),
	}
	for i := 0; i < n; i++ {
		out.RiskFree[i] = m.RiskFreeFactor(i)
	}

	for _, comp := range c.components {
		series, err := comp.Run(m)
		if err != nil {
			return nil, err
		}
		out.Components = append(out.Components, series)
	}
	var err error
	if out.MoneyMarket, err = c.moneyMarket.Run(m); err != nil {
		return nil, err
	}
	if out.Benchmark, err = c.benchmark.Run(m); err != nil {
		return nil, err
	}

	prevTotal := 1.0
	taxesDue := 0.0
	cumPretax := 1.0
	for i := 0; i < n; i++ {
		state := &out.States[i]
		state.Month = m.MonthAt(i)
		state.PerfPretax = 1.0
		state.LevPerfPretax = 1.0
		state.CumPretax = cumPretax
		state.CumPosttax = prevTotal

		// Not enough history for the slowest component yet.
		if i < c.maxLookbackMonth {
			continue
		}

		weightedPerf := 0.0
		weightedTaxes := 0.0
		weightedCash := 0.0
		for _, series := range out.Components {
			weightedPerf += series.Weight * series.States[i].PerfPretax
			weightedTaxes += series.Weight * series.States[i].Taxes
			weightedCash += series.Weight * series.States[i].CashFraction
		}
		state.PerfPretax = weightedPerf

		lev := c.cfg.Leverage
		levPerf := lev*(weightedPerf-1) + 1
		residualCash := 1 - (1-weightedCash)*lev
		taxesMonth := lev * weightedTaxes * prevTotal

		if residualCash >= 0 {
			// Idle cash earns the money-market holding's return,
			// pro-rated by the residual fraction.
			mm := out.MoneyMarket.States[i]
			levPerf += residualCash * (mm.PerfPretax - 1)
			taxesMonth += mm.Taxes * residualCash * prevTotal
		} else {
			borrowed := -residualCash
			refRate, ok := m.Reference.At(m.MonthAt(i))
			if !ok {
				return nil, &data.UnavailableError{
					Ticker: m.Reference.Name,
					Err:    errMissingReferenceRate(m.MonthAt(i)),
				}
			}
			// Monthly cost of carrying the borrowed fraction at the
			// reference rate plus the configured spread.
			monthlyRate := math.Pow((refRate+c.cfg.BorrowingSpread)/100+1, 1.0/12.0) - 1
			state.BorrowCost = borrowed * monthlyRate
			state.Borrowed = borrowed
			levPerf -= state.BorrowCost
		}

		taxesDue += taxesMonth
		cumPretax *= levPerf
		posttax := levPerf * prevTotal

		state.LevPerfPretax = levPerf
		state.TaxesMonth = taxesMonth
		state.CashFraction = math.Max(0, residualCash)
		state.CumPretax = cumPretax

		if state.Month.IsYearEnd() && taxesDue > 0 {
			posttax -= taxesDue
			state.TaxesPaid = taxesDue
			taxesDue = 0
		}
		state.TaxesDueTotal = taxesDue
		state.CumPosttax = posttax
		prevTotal = posttax
	}

	log.Debug().
		Int("months", n).
		Int("skipped", c.maxLookbackMonth).
		Int("components", len(out.Components)).
		Msg("composite run finished")
	return out, nil
}

type errMissingReferenceRate data.Month

func (e errMissingReferenceRate) Error() string {
	return "no reference rate published for " + data.Month(e).String()
}
