// Package app wires the full simulation pipeline: configuration in,
// cached result out. It owns the read-through result cache, prefetch
// fan-out, market assembly, and the composite run itself.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/backtest"
	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
	"github.com/sawpanic/dualmomentum/internal/metrics"
	"github.com/sawpanic/dualmomentum/internal/prefetch"
	"github.com/sawpanic/dualmomentum/internal/resultcache"
	"github.com/sawpanic/dualmomentum/internal/stats"
)

// Result is the complete output of one simulation: the full monthly
// series, the derived summary, and the configuration hash it is cached
// under.
type Result struct {
	Hash    string                    `msgpack:"hash" json:"hash"`
	Series  *backtest.CompositeSeries `msgpack:"series" json:"series"`
	Summary *stats.Summary            `msgpack:"summary" json:"summary"`
}

// Runner executes simulations with caching and concurrent prefetch.
type Runner struct {
	provider data.Provider
	rates    data.RateSource
	catalog  *config.Catalog
	cache    *resultcache.Cache
	prefetch *prefetch.Coordinator
	metrics  *metrics.Registry
}

// NewRunner assembles the pipeline. The provider is wrapped with
// replacement-chain splicing here, so callers pass the raw (cached or
// stored) provider.
func NewRunner(provider data.Provider, rates data.RateSource, catalog *config.Catalog,
	cache *resultcache.Cache, reg *metrics.Registry) *Runner {
	chained := data.NewChainedProvider(provider, catalog.ReplacementChain, config.PlaceholderTicker)
	return &Runner{
		provider: chained,
		rates:    rates,
		catalog:  catalog,
		cache:    cache,
		prefetch: prefetch.New(provider, catalog, prefetch.Options{}),
		metrics:  reg,
	}
}

// Run evaluates one configuration. Identical configurations within the
// result TTL are served from cache; ForceRefresh bypasses the read but
// still refreshes the cached value.
func (r *Runner) Run(ctx context.Context, cfg *config.SimulationConfig) (*Result, error) {
	composite, err := backtest.NewComposite(cfg, r.catalog)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	key := "result:" + cfg.Hash()

	if !cfg.ForceRefresh {
		var cached Result
		if err := r.cache.GetInto(ctx, key, &cached); err == nil {
			r.metrics.CacheHits.WithLabelValues("result").Inc()
			r.metrics.RunsTotal.WithLabelValues("hit").Inc()
			log.Info().Str("hash", cached.Hash).Msg("simulation served from cache")
			return &cached, nil
		} else if err != resultcache.ErrMiss {
			log.Warn().Err(err).Msg("result cache read failed")
		}
		r.metrics.CacheMisses.WithLabelValues("result").Inc()
	}

	r.metrics.ActiveRuns.Inc()
	defer r.metrics.ActiveRuns.Dec()
	started := time.Now()

	tickers, err := r.prefetch.Resolve(cfg)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := r.prefetch.Warm(ctx, tickers); err != nil {
		// Prefetch only bounds latency; a dead replacement fund must not
		// abort the run. Assembly fails on its own if data is missing.
		r.metrics.PrefetchFails.Inc()
		log.Warn().Err(err).Msg("prefetch incomplete")
	}

	market, err := r.assembleMarket(ctx, cfg, composite.Tickers())
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	series, err := composite.Run(market)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &Result{
		Hash:    cfg.Hash(),
		Series:  series,
		Summary: stats.NewSummary(series),
	}

	r.metrics.RunDuration.Observe(time.Since(started).Seconds())
	r.metrics.RunsTotal.WithLabelValues("computed").Inc()
	r.cache.SetFrom(ctx, key, result, resultcache.ResultTTL)
	log.Info().
		Str("hash", result.Hash).
		Int("months", series.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("simulation computed")
	return result, nil
}

// assembleMarket fetches every required series and fixes the shared
// calendar: it opens at the configured start and closes at the last
// month every required series covers.
func (r *Runner) assembleMarket(ctx context.Context, cfg *config.SimulationConfig,
	tickers []string) (*backtest.Market, error) {

	start, err := data.ParseMonth(cfg.StartDate)
	if err != nil {
		return nil, err
	}

	m := &backtest.Market{Start: start, Series: make(map[string]data.Series, len(tickers)+1)}
	end := data.Month{}
	for _, ticker := range tickers {
		if ticker == config.PlaceholderTicker {
			continue
		}
		series, err := r.provider.Fetch(ctx, ticker)
		if err != nil {
			return nil, err
		}
		m.Series[ticker] = series
		if end == (data.Month{}) || series.End().Before(end) {
			end = series.End()
		}
	}
	if end == (data.Month{}) || end.Before(start) {
		return nil, fmt.Errorf("no series covers the requested start %s", start)
	}
	m.End = end

	// The unit calendar spans the warm-up months too, so lookbacks over
	// the placeholder read as flat.
	onesStart := start.AddMonths(-cfg.MaxLookbackMonths())
	m.Series[config.PlaceholderTicker] = data.OnesCalendar(onesStart, end)

	if m.RiskFree, err = r.rates.RiskFree(ctx); err != nil {
		return nil, fmt.Errorf("failed to load risk-free rates: %w", err)
	}
	if cfg.Leverage > 1 {
		if m.Reference, err = r.rates.Reference(ctx); err != nil {
			return nil, fmt.Errorf("failed to load reference rates: %w", err)
		}
	}
	return m, nil
}
