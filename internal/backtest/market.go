package backtest

import (
	"github.com/sawpanic/dualmomentum/internal/data"
)

// Market is the price and rate history one run walks over. It is
// assembled once, after prefetch, and read-only from then on. Every
// series is consulted through the shared monthly calendar [Start, End];
// months a ticker does not cover simply read as missing.
type Market struct {
	Start     data.Month
	End       data.Month
	Series    map[string]data.Series
	RiskFree  data.RateSeries
	Reference data.RateSeries
}

// Months returns the number of calendar months the run covers.
func (m *Market) Months() int {
	n := m.End.Index() - m.Start.Index() + 1
	if n < 0 {
		return 0
	}
	return n
}

// MonthAt returns the i-th calendar month of the run.
func (m *Market) MonthAt(i int) data.Month {
	return m.Start.AddMonths(i)
}

// Bar returns ticker's bar in the i-th month, or ok=false when the
// ticker's history does not cover it.
func (m *Market) Bar(ticker string, i int) (data.Bar, bool) {
	s, ok := m.Series[ticker]
	if !ok {
		return data.Bar{}, false
	}
	return s.At(m.MonthAt(i))
}

// RiskFreeFactor returns the monthly risk-free growth factor for the
// i-th month, forward-filled past the last published rate.
func (m *Market) RiskFreeFactor(i int) float64 {
	f, ok := m.RiskFree.MonthlyFactor(m.MonthAt(i))
	if !ok {
		return 1.0
	}
	return f
}
