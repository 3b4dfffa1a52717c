package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntradayRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"timestamp_utc", "ticker", "underlying"}).
		AddRow(1000, "MSFT", 100.0).
		AddRow(1001, "MSFT", 100.5)

	mock.ExpectQuery("SELECT DISTINCT timestamp_utc, ticker, underlying").
		WithArgs(int64(1000), int64(1000+23400), "MSFT").
		WillReturnRows(rows)

	w := NewWarehouse(db)
	ticks, err := w.IntradayRows(context.Background(), "MSFT", 1000, 23400*time.Second)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, "MSFT", ticks[0].Ticker)
	assert.Equal(t, 100.0, ticks[0].Underlying)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpeningRangeRowsBindsDayAndTickerParams(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"timestamp_utc", "ticker", "underlying"}).
		AddRow(1000, "MSFT", 100.0)

	mock.ExpectQuery("SELECT timestamp_utc, ticker, underlying FROM ticks").
		WithArgs(int64(1000), int64(1030), int64(90000), int64(90030), "MSFT").
		WillReturnRows(rows)

	w := NewWarehouse(db)
	ticks, err := w.OpeningRangeRows(context.Background(), "MSFT", []int64{1000, 90000}, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "MSFT", ticks[0].Ticker)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpeningRangeRowsEmptyDayList(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWarehouse(db)
	ticks, err := w.OpeningRangeRows(context.Background(), "MSFT", nil, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}
