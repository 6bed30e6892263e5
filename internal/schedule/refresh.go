// Package schedule keeps the price-bar cache warm on a fixed cadence so
// interactive runs rarely pay for a cold fetch.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/prefetch"
)

// DefaultSpec refreshes at the top of every hour.
const DefaultSpec = "0 * * * *"

// Refresher periodically warms every catalog ticker through the
// prefetch coordinator.
type Refresher struct {
	cron     *cron.Cron
	catalog  *config.Catalog
	prefetch *prefetch.Coordinator
	timeout  time.Duration
}

// NewRefresher builds an hourly refresher. A zero timeout defaults to
// ten minutes per sweep.
func NewRefresher(catalog *config.Catalog, coord *prefetch.Coordinator, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Refresher{
		cron:     cron.New(),
		catalog:  catalog,
		prefetch: coord,
		timeout:  timeout,
	}
}

// Start schedules the sweep and returns immediately.
func (r *Refresher) Start(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	log.Info().Str("spec", spec).Msg("catalog refresh scheduled")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	tickers := make([]string, 0)
	for _, t := range r.catalog.Tickers() {
		if t == config.PlaceholderTicker {
			continue
		}
		tickers = append(tickers, t)
	}
	started := time.Now()
	if err := r.prefetch.Warm(ctx, tickers); err != nil {
		log.Error().Err(err).Msg("catalog refresh sweep failed")
		return
	}
	log.Info().
		Int("tickers", len(tickers)).
		Dur("elapsed", time.Since(started)).
		Msg("catalog refresh sweep complete")
}
