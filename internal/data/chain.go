package data

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// UnitFloor is the earliest month unit-value padding reaches back to
// when a replacement chain ends in the unit placeholder.
var UnitFloor = Month{Year: 1980, Mon: time.January}

// ChainResolver maps a ticker to its early-replacement chain, primary
// first. It returns at least the ticker itself.
type ChainResolver func(ticker string) ([]string, error)

// ChainedProvider extends each fetched series backwards through its
// replacement chain: months before the primary's first bar are filled
// from the replacement's history, scaled so adjusted closes line up at
// the splice month. A chain ending in the unit placeholder pads the
// remaining history with flat bars, so momentum over the padded span
// reads as exactly 1.
type ChainedProvider struct {
	inner   Provider
	resolve ChainResolver
	unit    string // placeholder ticker terminating chains, never fetched
}

// NewChainedProvider wraps inner with replacement-chain splicing.
func NewChainedProvider(inner Provider, resolve ChainResolver, unit string) *ChainedProvider {
	return &ChainedProvider{inner: inner, resolve: resolve, unit: unit}
}

// Fetch implements Provider.
func (p *ChainedProvider) Fetch(ctx context.Context, ticker string) (Series, error) {
	chain, err := p.resolve(ticker)
	if err != nil {
		return Series{}, err
	}

	series, err := p.inner.Fetch(ctx, chain[0])
	if err != nil {
		return Series{}, err
	}

	for _, repl := range chain[1:] {
		if repl == p.unit {
			series = padWithUnits(series)
			break
		}
		older, err := p.inner.Fetch(ctx, repl)
		if err != nil {
			// A dead replacement only limits how far back the history
			// reaches; the primary series is still usable.
			log.Warn().Str("ticker", ticker).Str("replacement", repl).
				Err(err).Msg("replacement history unavailable, chain cut short")
			break
		}
		series = spliceBefore(series, older)
	}
	return series, nil
}

// spliceBefore prepends older's bars from before series.Start, scaling
// them so the two histories agree at the splice month. Overlapping
// months keep the primary's bars. When older has no bar at the splice
// month no safe scale exists and series is returned unchanged.
func spliceBefore(series, older Series) Series {
	gap := series.Start.Index() - older.Start.Index()
	if gap <= 0 {
		return series
	}
	anchor, ok := older.At(series.Start)
	if !ok || anchor.AdjClose == 0 {
		return series
	}
	first := series.Bars[0]
	scaleAdj := first.AdjClose / anchor.AdjClose
	scaleClose := scaleAdj
	if anchor.Close != 0 {
		scaleClose = first.Close / anchor.Close
	}

	merged := make([]Bar, 0, gap+len(series.Bars))
	for _, b := range older.Bars[:gap] {
		merged = append(merged, Bar{
			Close:    b.Close * scaleClose,
			AdjClose: b.AdjClose * scaleAdj,
		})
	}
	merged = append(merged, series.Bars...)
	return Series{Ticker: series.Ticker, Start: older.Start, Bars: merged}
}

// padWithUnits extends the series back to UnitFloor with flat bars equal
// to its first real bar.
func padWithUnits(series Series) Series {
	gap := series.Start.Index() - UnitFloor.Index()
	if gap <= 0 || len(series.Bars) == 0 {
		return series
	}
	first := series.Bars[0]
	merged := make([]Bar, 0, gap+len(series.Bars))
	for i := 0; i < gap; i++ {
		merged = append(merged, first)
	}
	merged = append(merged, series.Bars...)
	return Series{Ticker: series.Ticker, Start: UnitFloor, Bars: merged}
}
