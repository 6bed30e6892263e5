package data

import "math"

// RateSeries is a monthly run of annualized percent rates, e.g. the
// 3-month treasury yield or an overnight reference rate. Rates past the
// last published month are forward-filled with the final value, matching
// how stale rate feeds are handled upstream.
type RateSeries struct {
	Name  string    `json:"name"`
	Start Month     `json:"start"`
	Rates []float64 `json:"rates"` // percent per annum, e.g. 4.25
}

// Len returns the number of published months.
func (r RateSeries) Len() int { return len(r.Rates) }

// End returns the last published month.
func (r RateSeries) End() Month {
	return r.Start.AddMonths(len(r.Rates) - 1)
}

// At returns the annualized percent rate for month m. Months after the
// last published month get the last published rate; months before the
// first get ok=false.
func (r RateSeries) At(m Month) (float64, bool) {
	if len(r.Rates) == 0 {
		return 0, false
	}
	i := m.Index() - r.Start.Index()
	if i < 0 {
		return 0, false
	}
	if i >= len(r.Rates) {
		i = len(r.Rates) - 1
	}
	return r.Rates[i], true
}

// MonthlyFactor converts the annualized percent rate for month m into a
// one-month growth factor: ((rate+100)/100)^(1/12).
func (r RateSeries) MonthlyFactor(m Month) (float64, bool) {
	pct, ok := r.At(m)
	if !ok {
		return 1.0, false
	}
	return math.Pow((pct+100)/100, 1.0/12.0), true
}
