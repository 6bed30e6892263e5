package pgstore

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/dualmomentum/internal/data"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestFetchReturnsOrderedSeries(t *testing.T) {
	store, mock := mockStore(t)

	rows := sqlmock.NewRows([]string{"year", "month", "close", "adj_close"}).
		AddRow(2019, 11, 100.0, 100.0).
		AddRow(2019, 12, 104.0, 105.0).
		AddRow(2020, 1, 102.0, 103.5)
	mock.ExpectQuery("SELECT year, month, close, adj_close").
		WithArgs("VTI").
		WillReturnRows(rows)

	s, err := store.Fetch(context.Background(), "VTI")
	require.NoError(t, err)

	assert.Equal(t, "VTI", s.Ticker)
	assert.Equal(t, data.Month{Year: 2019, Mon: time.November}, s.Start)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 105.0, s.Bars[1].AdjClose)
	assert.Equal(t, data.Month{Year: 2020, Mon: time.January}, s.End())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchEmptyIsUnavailable(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT year, month, close, adj_close").
		WithArgs("GHOST").
		WillReturnRows(sqlmock.NewRows([]string{"year", "month", "close", "adj_close"}))

	_, err := store.Fetch(context.Background(), "GHOST")
	require.Error(t, err)
	assert.True(t, data.IsUnavailable(err), "an unknown ticker falls through to the live provider")
}

func TestFetchRejectsGappedHistory(t *testing.T) {
	store, mock := mockStore(t)

	rows := sqlmock.NewRows([]string{"year", "month", "close", "adj_close"}).
		AddRow(2019, 11, 100.0, 100.0).
		AddRow(2020, 2, 104.0, 105.0) // December and January missing
	mock.ExpectQuery("SELECT year, month, close, adj_close").
		WithArgs("VTI").
		WillReturnRows(rows)

	_, err := store.Fetch(context.Background(), "VTI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap")
}

func TestSaveSeriesUpserts(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO monthly_bars").
		WithArgs("VTI", 2019, 12, 104.0, 105.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO monthly_bars").
		WithArgs("VTI", 2020, 1, 102.0, 103.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveSeries(context.Background(), data.Series{
		Ticker: "VTI",
		Start:  data.Month{Year: 2019, Mon: time.December},
		Bars: []data.Bar{
			{Close: 104, AdjClose: 105},
			{Close: 102, AdjClose: 103.5},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRiskFreeRates(t *testing.T) {
	store, mock := mockStore(t)

	rows := sqlmock.NewRows([]string{"year", "month", "rate"}).
		AddRow(2020, 1, 1.5).
		AddRow(2020, 2, 1.6)
	mock.ExpectQuery("SELECT year, month, rate").
		WithArgs("risk_free").
		WillReturnRows(rows)

	rs, err := store.RiskFree(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "risk_free", rs.Name)
	assert.Equal(t, data.Month{Year: 2020, Mon: time.January}, rs.Start)
	assert.Equal(t, []float64{1.5, 1.6}, rs.Rates)
}

func TestReferenceRatesEmpty(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT year, month, rate").
		WithArgs("reference").
		WillReturnRows(sqlmock.NewRows([]string{"year", "month", "rate"}))

	_, err := store.Reference(context.Background())
	assert.Error(t, err, "an empty rate table cannot price anything")
}
