package backtest

import (
	"github.com/sawpanic/dualmomentum/internal/data"
)

// MonthlyState is one component's record for one month: what was held
// and what it returned. Factors are growth multipliers (1.02 = +2%);
// the final month of a run keeps the neutral defaults because its
// return needs the following month's prices.
type MonthlyState struct {
	Month        data.Month `json:"month"`
	Holdings     []string   `json:"holdings"` // tickers and/or CASH, never empty
	CashFraction float64    `json:"cash_fraction"`
	CapGain      float64    `json:"cap_gain"`
	DivGain      float64    `json:"div_gain"`
	Taxes        float64    `json:"taxes"`
	PerfPretax   float64    `json:"performance_pretax"`
	PerfPosttax  float64    `json:"performance_posttax"`
}

// ComponentSeries is the complete monthly output of one component.
type ComponentSeries struct {
	Name   string         `json:"name"`
	Weight float64        `json:"weight"`
	Start  data.Month     `json:"start"`
	States []MonthlyState `json:"states"`
}

// Len returns the number of simulated months.
func (s *ComponentSeries) Len() int { return len(s.States) }

// CompositeMonthlyState is the blended record for one month at the
// composite level, after leverage, sweep, borrowing cost, and deferred
// tax accounting.
type CompositeMonthlyState struct {
	Month data.Month `json:"month"`

	PerfPretax    float64 `json:"performance_pretax"`     // weighted, unleveraged
	LevPerfPretax float64 `json:"lev_performance_pretax"` // after leverage, sweep, borrow cost
	CashFraction  float64 `json:"cash_fraction"`          // residual after leverage, floored at 0
	Borrowed      float64 `json:"borrowed"`               // fraction of capital borrowed
	BorrowCost    float64 `json:"borrow_cost"`            // monthly drag from borrowing

	TaxesMonth    float64 `json:"taxes_month"`     // liability accrued this month
	TaxesDueTotal float64 `json:"taxes_due_total"` // running accrual after this month
	TaxesPaid     float64 `json:"taxes_paid"`      // nonzero only at December settlements

	CumPretax  float64 `json:"cum_pretax"`  // running product of leveraged factors
	CumPosttax float64 `json:"cum_posttax"` // same, net of settled taxes
}

// CompositeSeries is the full output of one composite run, carrying
// everything the summary layer needs: the blended states, each
// component's own series, the money-market and benchmark reference
// tracks, and the aligned risk-free factors.
type CompositeSeries struct {
	MoneyMarketHolding string     `json:"money_market_holding"`
	Leverage           float64    `json:"leverage"`
	Start              data.Month `json:"start"`
	// SkippedMonths is the warm-up run of months excluded because the
	// longest dual-momentum lookback had not yet elapsed.
	SkippedMonths int `json:"skipped_months"`

	Components  []*ComponentSeries `json:"components"`
	MoneyMarket *ComponentSeries   `json:"money_market"`
	Benchmark   *ComponentSeries   `json:"benchmark"`

	RiskFree []float64               `json:"risk_free"` // monthly pre-tax factors
	States   []CompositeMonthlyState `json:"states"`
}

// Len returns the number of simulated months.
func (s *CompositeSeries) Len() int { return len(s.States) }

// MonthAt returns the i-th calendar month.
func (s *CompositeSeries) MonthAt(i int) data.Month {
	return s.Start.AddMonths(i)
}
