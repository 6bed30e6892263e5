package data

// Bar holds the close and dividend-adjusted close for one ticker in one
// month. The adjusted close carries the total-return signal; the raw
// close carries the price-only signal.
type Bar struct {
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
}

// Series is an ordered monthly run of bars for one ticker, starting at
// Start with no gaps. It is produced by a Provider and read-only to the
// simulation.
type Series struct {
	Ticker string `json:"ticker"`
	Start  Month  `json:"start"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of months covered.
func (s Series) Len() int { return len(s.Bars) }

// End returns the last covered month. Undefined for an empty series.
func (s Series) End() Month {
	return s.Start.AddMonths(len(s.Bars) - 1)
}

// At returns the bar for month m, or ok=false when m is outside the
// covered range.
func (s Series) At(m Month) (Bar, bool) {
	i := m.Index() - s.Start.Index()
	if i < 0 || i >= len(s.Bars) {
		return Bar{}, false
	}
	return s.Bars[i], true
}

// OnesCalendar builds a fresh unit-value series spanning [start, end].
// It stands in for an idle position: every month closes at exactly 1.0.
// Callers get their own copy; the scaffold is never shared or mutated.
func OnesCalendar(start, end Month) Series {
	n := end.Index() - start.Index() + 1
	if n < 0 {
		n = 0
	}
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Close: 1.0, AdjClose: 1.0}
	}
	return Series{Ticker: "ONES", Start: start, Bars: bars}
}
