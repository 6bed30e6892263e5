package data

import (
	"fmt"
	"time"
)

// Month identifies one calendar month. It is the only time unit the
// simulation understands: all series are monthly and all arithmetic is
// done on month offsets.
type Month struct {
	Year int        `json:"year" yaml:"year"`
	Mon  time.Month `json:"month" yaml:"month"`
}

// MonthOf returns the Month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// ParseMonth parses a "YYYY-MM-DD" or "YYYY-MM" date string into a Month.
func ParseMonth(s string) (Month, error) {
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("invalid month %q, want YYYY-MM-DD", s)
}

// Index returns the number of months since year zero. Two months can be
// compared or subtracted through their indexes.
func (m Month) Index() int {
	return m.Year*12 + int(m.Mon) - 1
}

// MonthAt is the inverse of Index.
func MonthAt(index int) Month {
	return Month{Year: index / 12, Mon: time.Month(index%12 + 1)}
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthAt(m.Index() + n)
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	return m.Index() < o.Index()
}

// After reports whether m is strictly later than o.
func (m Month) After(o Month) bool {
	return m.Index() > o.Index()
}

// IsYearEnd reports whether m is a December, the point at which accrued
// taxes are settled.
func (m Month) IsYearEnd() bool {
	return m.Mon == time.December
}

func (m Month) String() string {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}
