// Package prefetch resolves the full transitive set of tickers a
// composite will need and fetches them concurrently before the
// sequential simulation begins. It exists purely to bound wall-clock
// latency; simulation correctness never depends on it.
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
)

// Coordinator fans one fetch task out per distinct ticker and blocks
// until every worker reports back. Workers share no mutable state
// beyond the per-ticker price cache behind the provider.
type Coordinator struct {
	provider data.Provider
	catalog  *config.Catalog
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// Options tunes the coordinator's provider protection.
type Options struct {
	// RequestsPerSecond throttles upstream fetches. Zero means a default
	// of 10/s.
	RequestsPerSecond float64
	// Burst is the limiter burst size. Zero means 5.
	Burst int
}

// New builds a coordinator over the given provider and catalog.
func New(provider data.Provider, catalog *config.Catalog, opts Options) *Coordinator {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Coordinator{
		provider: provider,
		catalog:  catalog,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "price-provider",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Resolve expands the tickers a configuration needs into the full fetch
// set: every component ticker, the money-market holding, the benchmark,
// and each one's early-replacement chain. The unit placeholder is never
// fetched. A cyclic replacement chain fails here as a configuration
// error.
func (c *Coordinator) Resolve(cfg *config.SimulationConfig) ([]string, error) {
	need := []string{cfg.MoneyMarketHolding, config.BenchmarkTicker}
	for i := range cfg.Components {
		for _, ref := range cfg.Components[i].Tickers {
			need = append(need, ref.Ticker)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, ticker := range need {
		chain, err := c.catalog.ReplacementChain(ticker)
		if err != nil {
			return nil, err
		}
		for _, t := range chain {
			if t == config.PlaceholderTicker || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// Warm fetches every ticker concurrently and blocks until all workers
// finish. The first failure is returned after fan-in; the remaining
// workers still run to completion so the price cache is as warm as it
// can be.
func (c *Coordinator) Warm(ctx context.Context, tickers []string) error {
	start := time.Now()
	errs := make(chan error, len(tickers))
	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			errs <- c.fetchOne(ctx, ticker)
		}(ticker)
	}
	wg.Wait()
	close(errs)

	var first error
	failed := 0
	for err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	log.Info().
		Int("tickers", len(tickers)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("prefetch complete")
	return first
}

// fetchOne runs one worker: wait for the limiter, then fetch through
// the circuit breaker.
func (c *Coordinator) fetchOne(ctx context.Context, ticker string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &data.UnavailableError{Ticker: ticker, Err: err}
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.provider.Fetch(ctx, ticker)
	})
	if err != nil {
		if data.IsUnavailable(err) {
			return err
		}
		return &data.UnavailableError{Ticker: ticker, Err: err}
	}
	return nil
}
