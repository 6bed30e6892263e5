package main

import (
	"github.com/spf13/cobra"

	"github.com/sawpanic/dualmomentum/internal/httpapi"
	"github.com/sawpanic/dualmomentum/internal/prefetch"
	"github.com/sawpanic/dualmomentum/internal/schedule"
)

var (
	serveAddr        string
	serveRefreshSpec string
	serveNoRefresh   bool
)

// serveCmd runs the HTTP API with the hourly catalog refresh.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backtest HTTP API",
	Long: `Start the HTTP API: POST /v1/backtest runs a simulation, /health and
/metrics expose liveness and Prometheus metrics. A background schedule
keeps the price-bar cache warm for every catalog ticker.

Example usage:
  dualmomentum serve --addr :8080
  dualmomentum serve --addr :8080 --refresh-spec "30 * * * *"
  dualmomentum serve --no-refresh`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveRefreshSpec, "refresh-spec", schedule.DefaultSpec, "Cron spec for the catalog warm sweep")
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-refresh", false, "Disable the background catalog refresh")
}

func runServe(cmd *cobra.Command, args []string) error {
	pipe, err := buildPipeline()
	if err != nil {
		return err
	}
	defer pipe.Store.Close() //nolint:errcheck

	if !serveNoRefresh {
		// The sweep shares the runner's provider so warm fetches land in
		// the same price cache the API reads.
		coord := prefetch.New(pipe.Provider, pipe.Catalog, prefetch.Options{})
		refresher := schedule.NewRefresher(pipe.Catalog, coord, 0)
		if err := refresher.Start(serveRefreshSpec); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	server := httpapi.NewServer(pipe.Runner, pipe.Registry)
	return server.ListenAndServe(serveAddr)
}
