package backtest

import (
	"math"
	"sort"

	"github.com/sawpanic/dualmomentum/internal/config"
)

// holdingPeriodCap is where the backward holding-period walk stops: only
// the short-term vs long-term boundary at 12 months matters for taxes.
const holdingPeriodCap = 12

// Component simulates one weighted sleeve of the portfolio: it scores
// candidate tickers by trailing momentum each month, selects holdings,
// and computes tax-aware monthly returns for the sleeve alone.
type Component struct {
	cfg         config.ComponentConfig
	moneyMarket string
	taxes       map[string]config.TaxTreatment
}

// NewComponent validates the sleeve configuration against the resolved
// tax table. Every ticker the component can touch must carry a tax
// treatment; a hole in the mapping fails here, not mid-simulation.
func NewComponent(cfg config.ComponentConfig, moneyMarket string, taxes map[string]config.TaxTreatment) (*Component, error) {
	if !cfg.UseDualMomentum && len(cfg.Tickers) != 1 {
		return nil, &config.ConfigError{Field: "tickers",
			Reason: "buy-and-hold takes exactly one ticker"}
	}
	// A single candidate can never fill two slots.
	if len(cfg.Tickers) == 1 {
		cfg.MaxHoldings = 1
	}
	for _, ref := range cfg.Tickers {
		if _, ok := taxes[ref.Ticker]; !ok {
			return nil, &config.ConfigError{Field: "tickers",
				Reason: "no tax treatment resolved for " + ref.Ticker}
		}
	}
	if _, ok := taxes[moneyMarket]; !ok {
		return nil, &config.ConfigError{Field: "moneyMarketHolding",
			Reason: "no tax treatment resolved for " + moneyMarket}
	}
	return &Component{cfg: cfg, moneyMarket: moneyMarket, taxes: taxes}, nil
}

// Name returns the component's unique name.
func (c *Component) Name() string { return c.cfg.Name }

// tickerFrame holds one ticker's per-month inputs aligned to the run
// calendar. Missing months and undefined momenta are NaN.
type tickerFrame struct {
	close     []float64
	adjClose  []float64
	pretaxMom []float64 // total-return momentum over the lookback
	stMom     []float64 // same, taxed at short-term rates
	ltMom     []float64 // same, taxed at long-term rates
}

// buildFrame computes the monthly close/adjusted-close columns and the
// trailing total-return momentum for one ticker. The capital-gain part
// of the taxed momenta is only taxed above 1.0: a loss is never "taxed
// positively". The dividend/drift part is taxed at the income rate.
func (c *Component) buildFrame(m *Market, ticker string) *tickerFrame {
	n := m.Months()
	f := &tickerFrame{
		close:     make([]float64, n),
		adjClose:  make([]float64, n),
		pretaxMom: make([]float64, n),
		stMom:     make([]float64, n),
		ltMom:     make([]float64, n),
	}
	tax := c.taxes[ticker]
	st := 1 - tax.ShortTerm
	lt := 1 - tax.LongTerm
	inc := 1 - tax.Income

	nan := math.NaN()
	for i := 0; i < n; i++ {
		bar, ok := m.Bar(ticker, i)
		if !ok {
			f.close[i], f.adjClose[i] = nan, nan
			f.pretaxMom[i], f.stMom[i], f.ltMom[i] = nan, nan, nan
			continue
		}
		f.close[i], f.adjClose[i] = bar.Close, bar.AdjClose

		// The lookback may reach months before the run start; fetched
		// history earlier than the calendar still serves it.
		prev, ok := m.Bar(ticker, i-c.cfg.LookbackMonths)
		if !ok {
			f.pretaxMom[i], f.stMom[i], f.ltMom[i] = nan, nan, nan
			continue
		}
		capDur := bar.Close / prev.Close
		totalDur := bar.AdjClose / prev.AdjClose
		divDur := totalDur - capDur

		f.pretaxMom[i] = totalDur
		capST, capLT := capDur, capDur
		if capDur > 1 {
			capST = (capDur-1)*st + 1
			capLT = (capDur-1)*lt + 1
		}
		f.stMom[i] = capST + divDur*inc
		f.ltMom[i] = capLT + divDur*inc
	}
	return f
}

// Run simulates the component over the market calendar. The returned
// series covers every month; the final month keeps neutral return
// factors because its realized return needs the following month's
// prices.
func (c *Component) Run(m *Market) (*ComponentSeries, error) {
	n := m.Months()
	frames := make(map[string]*tickerFrame, len(c.cfg.Tickers)+1)
	for _, ref := range c.cfg.Tickers {
		frames[ref.Ticker] = c.buildFrame(m, ref.Ticker)
	}
	if _, ok := frames[c.moneyMarket]; !ok && c.moneyMarket != config.RiskFreeTicker {
		frames[c.moneyMarket] = c.buildFrame(m, c.moneyMarket)
	}

	out := &ComponentSeries{
		Name:   c.cfg.Name,
		Weight: c.cfg.Weight,
		Start:  m.Start,
		States: make([]MonthlyState, n),
	}
	for i := range out.States {
		out.States[i] = MonthlyState{
			Month:       m.MonthAt(i),
			PerfPretax:  1.0,
			PerfPosttax: 1.0,
		}
	}

	c.identifyHoldings(m, frames, out.States)
	c.applyReturns(frames, out.States)
	return out, nil
}

// identifyHoldings runs the monthly selection state machine: rank the
// tickers whose momentum clears the risk-free hurdle, fall back to CASH
// when none qualify. Buy-and-hold components hold their single ticker
// unconditionally.
func (c *Component) identifyHoldings(m *Market, frames map[string]*tickerFrame, states []MonthlyState) {
	for i := range states {
		if !c.cfg.UseDualMomentum {
			states[i].Holdings = []string{c.cfg.Tickers[0].Ticker}
			continue
		}

		// The hurdle scales the monthly risk-free rate to the lookback
		// length: momentum must beat holding t-bills for the same window.
		rf := m.RiskFreeFactor(i)
		hurdle := (rf-1)*float64(c.cfg.LookbackMonths)/12 + 1

		type candidate struct {
			ticker string
			mom    float64
		}
		var qualifying []candidate
		for _, ref := range c.cfg.Tickers {
			mom := frames[ref.Ticker].pretaxMom[i]
			if math.IsNaN(mom) {
				continue // not enough history: never qualifies
			}
			if mom > hurdle {
				qualifying = append(qualifying, candidate{ref.Ticker, mom})
			}
		}
		// Stable sort keeps the configured ticker order as the tie-break,
		// so selection is reproducible for equal momenta.
		sort.SliceStable(qualifying, func(a, b int) bool {
			return qualifying[a].mom > qualifying[b].mom
		})

		switch {
		case len(qualifying) == 0:
			states[i].Holdings = []string{config.CashHolding}
		case len(qualifying) == 1:
			if c.cfg.MaxHoldings == 1 {
				states[i].Holdings = []string{qualifying[0].ticker}
			} else {
				states[i].Holdings = []string{qualifying[0].ticker, config.CashHolding}
			}
		default:
			if c.cfg.MaxHoldings == 1 {
				states[i].Holdings = []string{qualifying[0].ticker}
			} else {
				states[i].Holdings = []string{qualifying[0].ticker, qualifying[1].ticker}
			}
		}
	}
}

// applyReturns computes each month's realized return from the next
// month's prices, taxing capital gains at the short- or long-term rate
// by holding period and dividends at the income rate.
func (c *Component) applyReturns(frames map[string]*tickerFrame, states []MonthlyState) {
	for i := range states {
		holdings := states[i].Holdings

		// All cash: no gains, no losses. The idle capital earns the money
		// market return at the composite level.
		if len(holdings) == 1 && holdings[0] == config.CashHolding {
			states[i].CashFraction = 1.0
			continue
		}

		if len(holdings) == 2 && holdings[1] == config.CashHolding {
			states[i].CashFraction = 0.5
		}

		// The last month has no next-month price yet.
		if i+1 == len(states) {
			break
		}

		capGain, divGain, taxes, ok := c.holdingReturn(frames, states, holdings[0], i)
		if !ok {
			continue
		}

		if len(holdings) == 2 {
			if holdings[1] == config.CashHolding {
				capGain /= 2
				divGain /= 2
				taxes /= 2
			} else {
				cap2, div2, tax2, ok2 := c.holdingReturn(frames, states, holdings[1], i)
				if ok2 {
					capGain = capGain/2 + cap2/2
					divGain = divGain/2 + div2/2
					taxes = taxes/2 + tax2/2
				}
			}
		}

		states[i].CapGain = capGain
		states[i].DivGain = divGain
		states[i].Taxes = taxes
		states[i].PerfPretax = capGain + divGain + 1
		states[i].PerfPosttax = capGain + divGain - taxes + 1
	}
}

// holdingReturn computes one ticker's capital gain, dividend gain, and
// tax for month i using month i+1's prices.
func (c *Component) holdingReturn(frames map[string]*tickerFrame, states []MonthlyState, ticker string, i int) (capGain, divGain, taxes float64, ok bool) {
	f := frames[ticker]
	if f == nil {
		return 0, 0, 0, false
	}
	if math.IsNaN(f.close[i]) || math.IsNaN(f.close[i+1]) {
		return 0, 0, 0, false
	}

	capGain = f.close[i+1]/f.close[i] - 1
	totalGain := f.adjClose[i+1]/f.adjClose[i] - 1
	divGain = totalGain - capGain

	tax := c.taxes[ticker]
	if c.holdingPeriod(states, ticker, i) >= holdingPeriodCap {
		taxes = capGain * tax.LongTerm
	} else {
		taxes = capGain * tax.ShortTerm
	}
	taxes += divGain * tax.Income
	return capGain, divGain, taxes, true
}

// holdingPeriod counts how many consecutive prior months ticker was
// already held, walking backward from month i and stopping at the cap.
func (c *Component) holdingPeriod(states []MonthlyState, ticker string, i int) int {
	held := 0
	for held < holdingPeriodCap && i-1-held >= 0 {
		if !contains(states[i-1-held].Holdings, ticker) {
			break
		}
		held++
	}
	return held
}

func contains(holdings []string, ticker string) bool {
	for _, h := range holdings {
		if h == ticker {
			return true
		}
	}
	return false
}
