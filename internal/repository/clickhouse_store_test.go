package repository

import (
	"context"
	"testing"
	"time"

	"QuietSpike/internal/domain/models"
	pkgch "QuietSpike/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCHStore(t *testing.T) (*ClickHouseStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewClickHouseStore(pkgch.NewClientFromDB(sqlx.NewDb(db, "clickhouse")))
	s.now = func() time.Time { return time.Unix(0, 42) }
	return s, mock
}

func TestClickHouseUpsertBarsCarriesVersion(t *testing.T) {
	store, mock := newMockCHStore(t)
	b := sampleBar("20240102")

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO daily_bars`).
		ExpectExec().
		WithArgs("20240102_000001", b.Date, "000001", 10.0, 10.2, 10.3, 9.9, 120000.0, 1.2e6, 4.0, 2.0, 0.5, 0.2, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertBars(context.Background(), []models.Bar{b}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClickHouseQueryBarsReadsFinal(t *testing.T) {
	store, mock := newMockCHStore(t)

	cols := []string{"trade_date", "code", "open", "close", "high", "low", "volume", "turnover_amount",
		"amplitude_pct", "pct_change", "turnover_rate_pct", "price_change_amount"}
	local := time.Date(2024, 1, 2, 0, 0, 0, 0, time.FixedZone("CST", 8*3600))
	mock.ExpectQuery(`FROM daily_bars FINAL`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(local, "000001", 10.0, 10.2, 10.3, 9.9, 1.0, 1.0, 0.0, 0.0, 0.0, 0.0))

	bars, err := store.QueryBars(context.Background(), "000001", day("20240101"), day("20240131"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, day("20240102"), bars[0].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClickHouseInit(t *testing.T) {
	store, mock := newMockCHStore(t)
	mock.ExpectExec(`ReplacingMergeTree\(version\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS screen_signals`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
