package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
	"github.com/sawpanic/dualmomentum/internal/data/cache"
	"github.com/sawpanic/dualmomentum/internal/data/pgstore"
	"github.com/sawpanic/dualmomentum/internal/metrics"
	"github.com/sawpanic/dualmomentum/internal/resultcache"

	"github.com/sawpanic/dualmomentum/internal/app"
)

var (
	flagLogLevel    string
	flagJSONLogs    bool
	flagDatabaseURL string
	flagRedisAddr   string
	flagCatalogPath string
)

// rootCmd is the base command for the dualmomentum CLI
var rootCmd = &cobra.Command{
	Use:   "dualmomentum",
	Short: "Dual-momentum portfolio backtester",
	Long: `dualmomentum simulates weighted dual-momentum portfolios over monthly
price history: per-component momentum selection with tax treatment,
leveraged composite blending with borrowing costs, and year-end deferred
tax settlement.`,
	PersistentPreRunE: setupLogging,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dualmomentum - dual-momentum portfolio backtester")
		fmt.Println("Use 'dualmomentum run --config <file>' to run a simulation")
	},
}

func init() {
	bindGlobalFlags(rootCmd.PersistentFlags())
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&flagJSONLogs, "json-logs", false, "Emit structured JSON logs instead of console output")
	fs.StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL DSN for the bar store (defaults to DATABASE_URL)")
	fs.StringVar(&flagRedisAddr, "redis-addr", "", "Redis address for the result cache (defaults to REDIS_ADDR)")
	fs.StringVar(&flagCatalogPath, "catalog", "", "Path to a ticker catalog YAML (defaults to the embedded catalog)")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", flagLogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	if !flagJSONLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

func loadCatalog() (*config.Catalog, error) {
	if flagCatalogPath == "" {
		return config.DefaultCatalog(), nil
	}
	return config.LoadCatalog(flagCatalogPath)
}

// pipeline is the shared run/serve wiring: Postgres bar store behind
// the price cache, Redis-backed result cache with its in-process
// fallback, and the metrics registry.
type pipeline struct {
	Runner   *app.Runner
	Store    *pgstore.Store
	Provider data.Provider
	Registry *metrics.Registry
	Catalog  *config.Catalog
}

func buildPipeline() (*pipeline, error) {
	dsn := flagDatabaseURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, fmt.Errorf("no bar store configured: set --database-url or DATABASE_URL")
	}
	store, err := pgstore.Open(dsn)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog()
	if err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}

	provider := data.NewCachedProvider(store, cache.NewAuto())

	redisAddr := flagRedisAddr
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	var primary resultcache.Store
	if redisAddr != "" {
		primary = resultcache.NewRedisStore(redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
	}
	results := resultcache.New(primary)

	reg := metrics.NewRegistry()
	return &pipeline{
		Runner:   app.NewRunner(provider, store, catalog, results, reg),
		Store:    store,
		Provider: provider,
		Registry: reg,
		Catalog:  catalog,
	}, nil
}

func main() {
	// Local env files are a convenience, their absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
