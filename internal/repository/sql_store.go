package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/repository"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_bars (
		id                  VARCHAR(32) PRIMARY KEY,
		trade_date          CHAR(8) NOT NULL,
		code                VARCHAR(16) NOT NULL,
		open                DOUBLE PRECISION NOT NULL,
		close               DOUBLE PRECISION NOT NULL,
		high                DOUBLE PRECISION NOT NULL,
		low                 DOUBLE PRECISION NOT NULL,
		volume              DOUBLE PRECISION NOT NULL,
		turnover_amount     DOUBLE PRECISION NOT NULL,
		amplitude_pct       DOUBLE PRECISION NOT NULL,
		pct_change          DOUBLE PRECISION NOT NULL,
		turnover_rate_pct   DOUBLE PRECISION NOT NULL,
		price_change_amount DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_bars_code_date ON daily_bars (code, trade_date)`,
	`CREATE TABLE IF NOT EXISTS screen_signals (
		id               VARCHAR(32) NOT NULL,
		strategy         VARCHAR(16) NOT NULL,
		trade_date       CHAR(8) NOT NULL,
		code             VARCHAR(16) NOT NULL,
		name             VARCHAR(64) NOT NULL,
		matched          BOOLEAN NOT NULL,
		reason           VARCHAR(64) NOT NULL,
		qualifying_dates TEXT NOT NULL,
		avg_volume       DOUBLE PRECISION,
		avg_amplitude    DOUBLE PRECISION,
		volume_std_dev   DOUBLE PRECISION,
		PRIMARY KEY (id, strategy)
	)`,
}

const upsertBarSQL = `
	INSERT INTO daily_bars
	(id, trade_date, code, open, close, high, low, volume, turnover_amount,
	 amplitude_pct, pct_change, turnover_rate_pct, price_change_amount)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		open = excluded.open,
		close = excluded.close,
		high = excluded.high,
		low = excluded.low,
		volume = excluded.volume,
		turnover_amount = excluded.turnover_amount,
		amplitude_pct = excluded.amplitude_pct,
		pct_change = excluded.pct_change,
		turnover_rate_pct = excluded.turnover_rate_pct,
		price_change_amount = excluded.price_change_amount`

const selectBarsSQL = `
	SELECT trade_date, code, open, close, high, low, volume, turnover_amount,
	       amplitude_pct, pct_change, turnover_rate_pct, price_change_amount
	FROM daily_bars
	WHERE code = ? AND trade_date >= ? AND trade_date <= ?
	ORDER BY trade_date ASC`

const upsertSignalSQL = `
	INSERT INTO screen_signals
	(id, strategy, trade_date, code, name, matched, reason, qualifying_dates,
	 avg_volume, avg_amplitude, volume_std_dev)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id, strategy) DO UPDATE SET
		name = excluded.name,
		matched = excluded.matched,
		reason = excluded.reason,
		qualifying_dates = excluded.qualifying_dates,
		avg_volume = excluded.avg_volume,
		avg_amplitude = excluded.avg_amplitude,
		volume_std_dev = excluded.volume_std_dev`

type barRow struct {
	TradeDate         string  `db:"trade_date"`
	Code              string  `db:"code"`
	Open              float64 `db:"open"`
	Close             float64 `db:"close"`
	High              float64 `db:"high"`
	Low               float64 `db:"low"`
	Volume            float64 `db:"volume"`
	TurnoverAmount    float64 `db:"turnover_amount"`
	AmplitudePct      float64 `db:"amplitude_pct"`
	PctChange         float64 `db:"pct_change"`
	TurnoverRatePct   float64 `db:"turnover_rate_pct"`
	PriceChangeAmount float64 `db:"price_change_amount"`
}

func (r barRow) toBar() (models.Bar, error) {
	d, err := time.ParseInLocation(models.DateLayout, r.TradeDate, time.UTC)
	if err != nil {
		return models.Bar{}, fmt.Errorf("row %s_%s: %w", r.TradeDate, r.Code, err)
	}
	return models.Bar{
		Date:              d,
		Code:              r.Code,
		Open:              r.Open,
		Close:             r.Close,
		High:              r.High,
		Low:               r.Low,
		Volume:            r.Volume,
		TurnoverAmount:    r.TurnoverAmount,
		AmplitudePct:      r.AmplitudePct,
		PctChange:         r.PctChange,
		TurnoverRatePct:   r.TurnoverRatePct,
		PriceChangeAmount: r.PriceChangeAmount,
	}, nil
}

// SQLStore keeps bars and signals in sqlite or postgres.
type SQLStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

var (
	_ repository.BarStore    = (*SQLStore)(nil)
	_ repository.SignalStore = (*SQLStore)(nil)
)

// OpenSQLStore opens driver ("sqlite" or "postgres") at dsn.
func OpenSQLStore(driver, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent upserts
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewSQLStore(db, 30*time.Second), nil
}

// NewSQLStore wraps an open pool.
func NewSQLStore(db *sqlx.DB, timeout time.Duration) *SQLStore {
	return &SQLStore{db: db, timeout: timeout}
}

func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range sqlSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// UpsertBars writes bars in one transaction; a bar with an existing id replaces it.
func (s *SQLStore) UpsertBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.inTx(ctx, upsertBarSQL, func(stmt *sqlx.Stmt) error {
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx,
				b.ID(), b.Date.Format(models.DateLayout), b.Code,
				b.Open, b.Close, b.High, b.Low, b.Volume, b.TurnoverAmount,
				b.AmplitudePct, b.PctChange, b.TurnoverRatePct, b.PriceChangeAmount,
			); err != nil {
				return fmt.Errorf("upsert bar %s: %w", b.ID(), err)
			}
		}
		return nil
	})
}

// QueryBars returns bars for code within [from, to] in ascending date order.
func (s *SQLStore) QueryBars(ctx context.Context, code string, from, to time.Time) ([]models.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []barRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(selectBarsSQL),
		code, from.Format(models.DateLayout), to.Format(models.DateLayout),
	); err != nil {
		return nil, fmt.Errorf("query bars %s: %w", code, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBar()
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// UpsertSignals writes signals keyed by (date_code, strategy).
func (s *SQLStore) UpsertSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.inTx(ctx, upsertSignalSQL, func(stmt *sqlx.Stmt) error {
		for _, sig := range signals {
			var avgVol, avgAmp, volStd sql.NullFloat64
			if sig.Baseline != nil {
				avgVol = sql.NullFloat64{Float64: sig.Baseline.AvgVolume, Valid: true}
				avgAmp = sql.NullFloat64{Float64: sig.Baseline.AvgAmplitude, Valid: true}
				volStd = sql.NullFloat64{Float64: sig.Baseline.VolumeStdDev, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				sig.ID(), string(sig.Strategy), sig.AsOf.Format(models.DateLayout), sig.Code, sig.Name,
				sig.Matched, sig.Reason, joinDates(sig.QualifyingDates),
				avgVol, avgAmp, volStd,
			); err != nil {
				return fmt.Errorf("upsert signal %s: %w", sig.ID(), err)
			}
		}
		return nil
	})
}

func (s *SQLStore) inTx(ctx context.Context, query string, fn func(*sqlx.Stmt) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(models.DateLayout)
	}
	return strings.Join(parts, ",")
}
