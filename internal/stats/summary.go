// Package stats derives summary risk and performance statistics from a
// finished composite series: drawdown curves, CAGR, Sharpe and Sortino
// ratios, cross-asset correlation, and the month-by-month breakdown.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/dualmomentum/internal/backtest"
	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
)

const monthsPerYear = 12

// TrackStats describes one cumulative performance track (strategy or
// benchmark, pre- or post-tax).
type TrackStats struct {
	TotalReturn      float64    `json:"total_return"` // final cumulative value - 1
	CAGR             float64    `json:"cagr"`         // annualized growth rate, 0.07 = 7%/yr
	MaxDrawdown      float64    `json:"max_drawdown"` // worst drawdown value in [0,1]
	MaxDrawdownMonth data.Month `json:"max_drawdown_month"`
	Drawdown         []float64  `json:"drawdown"`   // per-month drawdown values
	Cumulative       []float64  `json:"cumulative"` // running product of monthly factors
}

// RatioStats holds the excess-return ratios for one track, computed on
// pre-tax monthly returns over the risk-free series.
type RatioStats struct {
	Sharpe     float64 `json:"sharpe"`
	Sortino    float64 `json:"sortino"`
	Volatility float64 `json:"annual_volatility"`
}

// Correlations is the pairwise correlation matrix of monthly pre-tax
// returns across the components, the composite, and the benchmark.
type Correlations struct {
	Labels []string    `json:"labels"`
	Matrix [][]float64 `json:"matrix"`
}

// HoldingRecord is one component's line in the monthly breakdown, with
// CASH months resolved against the money-market holding for display.
type HoldingRecord struct {
	Name     string   `json:"name"`
	Holdings []string `json:"holdings"`
	Pretax   float64  `json:"pretax"`
	Posttax  float64  `json:"posttax"`
}

// MonthRecord narrates one simulated month.
type MonthRecord struct {
	Month             data.Month      `json:"month"`
	Holdings          []HoldingRecord `json:"holdings"`
	ValueStartPretax  float64         `json:"value_start_pretax"`
	ValueStartPosttax float64         `json:"value_start_posttax"`
	ValueEndPretax    float64         `json:"value_end_pretax"`
	ValueEndPosttax   float64         `json:"value_end_posttax"`
	BenchmarkPretax   float64         `json:"benchmark_end_pretax"`
	BenchmarkPosttax  float64         `json:"benchmark_end_posttax"`
}

// Summary is the immutable set of derived metrics for one finished run.
type Summary struct {
	StrategyPretax   TrackStats `json:"strategy_pretax"`
	StrategyPosttax  TrackStats `json:"strategy_posttax"`
	BenchmarkPretax  TrackStats `json:"benchmark_pretax"`
	BenchmarkPosttax TrackStats `json:"benchmark_posttax"`

	Strategy  RatioStats `json:"strategy"`
	Benchmark RatioStats `json:"benchmark"`

	Correlations Correlations  `json:"correlations"`
	Monthly      []MonthRecord `json:"monthly"`
}

// NewSummary computes all summary statistics for a finished composite
// series. The result never changes after construction.
func NewSummary(cs *backtest.CompositeSeries) *Summary {
	n := cs.Len()
	stratPre := make([]float64, n)
	stratPost := make([]float64, n)
	benchPre := make([]float64, n)
	benchPost := make([]float64, n)
	for i := 0; i < n; i++ {
		stratPre[i] = cs.States[i].LevPerfPretax
		benchPre[i] = cs.Benchmark.States[i].PerfPretax
		benchPost[i] = cs.Benchmark.States[i].PerfPosttax
	}
	// The post-tax monthly factor is the composite's cumulative post-tax
	// value relative to the month before; tax settlements show up as
	// December dips.
	prev := 1.0
	for i := 0; i < n; i++ {
		stratPost[i] = cs.States[i].CumPosttax / prev
		prev = cs.States[i].CumPosttax
	}

	s := &Summary{
		StrategyPretax:   newTrackStats(cs, stratPre),
		StrategyPosttax:  newTrackStats(cs, stratPost),
		BenchmarkPretax:  newTrackStats(cs, benchPre),
		BenchmarkPosttax: newTrackStats(cs, benchPost),
	}
	s.Strategy = newRatioStats(stratPre, cs.RiskFree, cs.SkippedMonths)
	s.Benchmark = newRatioStats(benchPre, cs.RiskFree, cs.SkippedMonths)
	s.Correlations = newCorrelations(cs, stratPre, benchPre)
	s.Monthly = newMonthly(cs, s.StrategyPretax.Cumulative, s.StrategyPosttax.Cumulative,
		s.BenchmarkPretax.Cumulative, s.BenchmarkPosttax.Cumulative)
	return s
}

// newTrackStats compounds the monthly factors and derives the drawdown
// curve and CAGR for one track.
func newTrackStats(cs *backtest.CompositeSeries, factors []float64) TrackStats {
	cumulative := make([]float64, len(factors))
	running := 1.0
	for i, f := range factors {
		running *= f
		cumulative[i] = running
	}

	drawdown, maxDD, maxDDIdx := drawdownCurve(cumulative)

	ts := TrackStats{
		Drawdown:    drawdown,
		Cumulative:  cumulative,
		MaxDrawdown: maxDD,
	}
	if maxDDIdx >= 0 {
		ts.MaxDrawdownMonth = cs.MonthAt(maxDDIdx)
	}
	if len(cumulative) > 0 {
		final := cumulative[len(cumulative)-1]
		ts.TotalReturn = final - 1
		years := float64(len(factors)-cs.SkippedMonths) / monthsPerYear
		if years > 0 && final > 0 {
			ts.CAGR = math.Pow(final, 1/years) - 1
		}
	}
	return ts
}

// drawdownCurve computes per-month drawdowns against the running peak.
// Values are in [0,1]; the reported index is the first month at which
// the minimum occurs.
func drawdownCurve(cumulative []float64) (curve []float64, maxDD float64, maxDDIdx int) {
	curve = make([]float64, len(cumulative))
	maxDD = 1.0
	maxDDIdx = -1
	peak := math.Inf(-1)
	for i, v := range cumulative {
		if i == 0 {
			curve[i] = 1.0
			peak = v
			continue
		}
		dd := math.Min(1.0, v/peak)
		curve[i] = dd
		if dd < maxDD {
			maxDD = dd
			maxDDIdx = i
		}
		if v > peak {
			peak = v
		}
	}
	return curve, maxDD, maxDDIdx
}

// newRatioStats computes Sharpe, Sortino, and annualized volatility on
// the excess of the track's pre-tax returns over the risk-free rate,
// excluding the lookback warm-up and the final incomplete month.
func newRatioStats(factors, riskFree []float64, skipped int) RatioStats {
	lo, hi := skipped, len(factors)-1
	if hi <= lo {
		return RatioStats{}
	}
	excess := make([]float64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		excess = append(excess, factors[i]-riskFree[i])
	}

	mean := stat.Mean(excess, nil)
	sd := stat.StdDev(excess, nil)

	rs := RatioStats{Volatility: sd * math.Sqrt(monthsPerYear)}
	if sd > 0 {
		rs.Sharpe = math.Sqrt(monthsPerYear) * mean / sd
	}

	// Downside deviation: only negative excess contributes.
	sumSq := 0.0
	for _, e := range excess {
		if e < 0 {
			sumSq += e * e
		}
	}
	downside := math.Sqrt(sumSq / float64(len(excess)))
	if downside > 0 {
		rs.Sortino = math.Sqrt(monthsPerYear) * mean / downside
	}
	return rs
}

// newCorrelations builds the pairwise correlation matrix of monthly
// pre-tax returns for every component, the composite, and the
// benchmark, over the post-warm-up window.
func newCorrelations(cs *backtest.CompositeSeries, stratPre, benchPre []float64) Correlations {
	lo, hi := cs.SkippedMonths, cs.Len()-1
	if hi <= lo {
		return Correlations{}
	}

	labels := []string{"Strategy", "Benchmark"}
	columns := [][]float64{stratPre[lo:hi], benchPre[lo:hi]}
	for _, comp := range cs.Components {
		labels = append(labels, comp.Name)
		col := make([]float64, 0, hi-lo)
		for i := lo; i < hi; i++ {
			col = append(col, comp.States[i].PerfPretax)
		}
		columns = append(columns, col)
	}

	matrix := make([][]float64, len(columns))
	for i := range columns {
		matrix[i] = make([]float64, len(columns))
		for j := range columns {
			if i == j {
				matrix[i][j] = 1.0
				continue
			}
			matrix[i][j] = stat.Correlation(columns[i], columns[j], nil)
		}
	}
	return Correlations{Labels: labels, Matrix: matrix}
}

// newMonthly builds the month-by-month narrative. CASH and half-CASH
// months are resolved against the money-market holding's return so the
// display shows what the idle capital actually earned.
func newMonthly(cs *backtest.CompositeSeries, cumPre, cumPost, benchPre, benchPost []float64) []MonthRecord {
	var out []MonthRecord
	for i := cs.SkippedMonths; i < cs.Len()-1; i++ {
		mm := cs.MoneyMarket.States[i]

		holdings := make([]HoldingRecord, 0, len(cs.Components))
		for _, comp := range cs.Components {
			st := comp.States[i]
			rec := HoldingRecord{Name: comp.Name}
			switch {
			case len(st.Holdings) == 1 && st.Holdings[0] == config.CashHolding:
				rec.Holdings = []string{cs.MoneyMarketHolding}
				rec.Pretax = mm.PerfPretax
				rec.Posttax = mm.PerfPosttax
			case len(st.Holdings) == 2 && st.Holdings[1] == config.CashHolding:
				// The component's own factors already carry the idle half
				// at zero return; the sweep's money-market earnings go on
				// top of them.
				rec.Holdings = st.Holdings
				rec.Pretax = st.PerfPretax + (mm.PerfPretax-1)/2
				rec.Posttax = st.PerfPosttax + (mm.PerfPosttax-1)/2
			default:
				rec.Holdings = st.Holdings
				rec.Pretax = st.PerfPretax
				rec.Posttax = st.PerfPosttax
			}
			holdings = append(holdings, rec)
		}

		startPre, startPost := 1.0, 1.0
		if i > 0 {
			startPre, startPost = cumPre[i-1], cumPost[i-1]
		}
		out = append(out, MonthRecord{
			Month:             cs.MonthAt(i),
			Holdings:          holdings,
			ValueStartPretax:  startPre,
			ValueStartPosttax: startPost,
			ValueEndPretax:    cumPre[i],
			ValueEndPosttax:   cumPost[i],
			BenchmarkPretax:   benchPre[i],
			BenchmarkPosttax:  benchPost[i],
		})
	}
	return out
}
