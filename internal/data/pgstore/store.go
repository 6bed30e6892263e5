// Package pgstore persists monthly price bars and reference rates in
// PostgreSQL and serves them back as simulation inputs. It implements
// both data.Provider and data.RateSource, so a warmed database can run
// simulations without touching any upstream feed.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/data"
)

// Store reads and writes market data in PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL using a lib/pq DSN and verifies the
// connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing sqlx handle. Tests use this with sqlmock.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type barRow struct {
	Year     int     `db:"year"`
	Month    int     `db:"month"`
	Close    float64 `db:"close"`
	AdjClose float64 `db:"adj_close"`
}

type rateRow struct {
	Year int     `db:"year"`
	Mon  int     `db:"month"`
	Rate float64 `db:"rate"`
}

// Fetch implements data.Provider. Bars are returned in calendar order;
// an empty result is reported as unavailable so callers fall through to
// a live provider.
func (s *Store) Fetch(ctx context.Context, ticker string) (data.Series, error) {
	var rows []barRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT year, month, close, adj_close
		   FROM monthly_bars
		  WHERE ticker = $1
		  ORDER BY year, month`, ticker)
	if err != nil {
		return data.Series{}, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return data.Series{}, &data.UnavailableError{Ticker: ticker, Err: sql.ErrNoRows}
	}

	start := data.Month{Year: rows[0].Year, Mon: time.Month(rows[0].Month)}
	bars := make([]data.Bar, len(rows))
	for i, r := range rows {
		got := data.Month{Year: r.Year, Mon: time.Month(r.Month)}
		if want := start.AddMonths(i); got != want {
			return data.Series{}, fmt.Errorf("bars for %s have a gap at %s", ticker, want)
		}
		bars[i] = data.Bar{Close: r.Close, AdjClose: r.AdjClose}
	}
	return data.Series{Ticker: ticker, Start: start, Bars: bars}, nil
}

// SaveSeries upserts the full bar history for one ticker in a single
// transaction.
func (s *Store) SaveSeries(ctx context.Context, series data.Series) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bar upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, b := range series.Bars {
		m := series.Start.AddMonths(i)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO monthly_bars (ticker, year, month, close, adj_close)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (ticker, year, month)
			 DO UPDATE SET close = EXCLUDED.close, adj_close = EXCLUDED.adj_close`,
			series.Ticker, m.Year, int(m.Mon), b.Close, b.AdjClose)
		if err != nil {
			return fmt.Errorf("failed to upsert bar %s %s: %w", series.Ticker, m, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	log.Debug().Str("ticker", series.Ticker).Int("bars", series.Len()).Msg("saved bar history")
	return nil
}

func (s *Store) rateSeries(ctx context.Context, name string) (data.RateSeries, error) {
	var rows []rateRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT year, month, rate
		   FROM reference_rates
		  WHERE name = $1
		  ORDER BY year, month`, name)
	if err != nil {
		return data.RateSeries{}, fmt.Errorf("failed to query rates %s: %w", name, err)
	}
	if len(rows) == 0 {
		return data.RateSeries{}, fmt.Errorf("no %s rates stored", name)
	}
	start := data.Month{Year: rows[0].Year, Mon: time.Month(rows[0].Mon)}
	rates := make([]float64, len(rows))
	for i, r := range rows {
		rates[i] = r.Rate
	}
	return data.RateSeries{Name: name, Start: start, Rates: rates}, nil
}

// RiskFree implements data.RateSource.
func (s *Store) RiskFree(ctx context.Context) (data.RateSeries, error) {
	return s.rateSeries(ctx, "risk_free")
}

// Reference implements data.RateSource.
func (s *Store) Reference(ctx context.Context) (data.RateSeries, error) {
	return s.rateSeries(ctx, "reference")
}

// SaveRates upserts one named rate series.
func (s *Store) SaveRates(ctx context.Context, name string, series data.RateSeries) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rate upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, rate := range series.Rates {
		m := series.Start.AddMonths(i)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reference_rates (name, year, month, rate)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (name, year, month)
			 DO UPDATE SET rate = EXCLUDED.rate`,
			name, m.Year, int(m.Mon), rate)
		if err != nil {
			return fmt.Errorf("failed to upsert rate %s %s: %w", name, m, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate upsert: %w", err)
	}
	return nil
}
