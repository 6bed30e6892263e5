package data

import (
	"context"
	"errors"
	"fmt"
)

// Provider supplies the ordered monthly price history for a ticker.
// Retrying and historical splicing (early-replacement merging) happen
// behind this interface; the simulation only consumes the result.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (Series, error)
}

// RateSource supplies the monthly rate series the simulation depends on:
// the risk-free hurdle rate and the reference short rate used to price
// borrowed leverage.
type RateSource interface {
	RiskFree(ctx context.Context) (RateSeries, error)
	Reference(ctx context.Context) (RateSeries, error)
}

// UnavailableError reports that a required series could not be obtained
// even after the provider's own retries. It is distinguishable from a
// configuration error so callers can decide whether a retry makes sense.
type UnavailableError struct {
	Ticker string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("price data unavailable for %s: %v", e.Ticker, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// StaticProvider serves series from a fixed in-memory set. It backs unit
// tests and offline fixtures.
type StaticProvider struct {
	Series map[string]Series
}

// Fetch implements Provider.
func (p *StaticProvider) Fetch(_ context.Context, ticker string) (Series, error) {
	s, ok := p.Series[ticker]
	if !ok {
		return Series{}, &UnavailableError{Ticker: ticker, Err: errors.New("not in static set")}
	}
	return s, nil
}

// StaticRates serves fixed rate series, for tests and offline fixtures.
type StaticRates struct {
	Free RateSeries
	Ref  RateSeries
}

// RiskFree implements RateSource.
func (r *StaticRates) RiskFree(context.Context) (RateSeries, error) { return r.Free, nil }

// Reference implements RateSource.
func (r *StaticRates) Reference(context.Context) (RateSeries, error) { return r.Ref, nil }
