package repository

import (
	"context"
	"fmt"
	"time"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/repository"
	pkgch "QuietSpike/pkg/clickhouse"

	"github.com/jmoiron/sqlx"
)

// ReplacingMergeTree keeps the row with the highest version per id, so
// replays and re-syncs converge to last-write-wins once merged or read FINAL.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_bars (
		id                  String,
		trade_date          Date,
		code                LowCardinality(String),
		open                Float64,
		close               Float64,
		high                Float64,
		low                 Float64,
		volume              Float64,
		turnover_amount     Float64,
		amplitude_pct       Float64,
		pct_change          Float64,
		turnover_rate_pct   Float64,
		price_change_amount Float64,
		version             UInt64
	) ENGINE = ReplacingMergeTree(version)
	PARTITION BY toYear(trade_date)
	ORDER BY (code, trade_date, id)`,
	`CREATE TABLE IF NOT EXISTS screen_signals (
		id               String,
		strategy         LowCardinality(String),
		trade_date       Date,
		code             String,
		name             String,
		matched          UInt8,
		reason           String,
		qualifying_dates Array(Date),
		avg_volume       Nullable(Float64),
		avg_amplitude    Nullable(Float64),
		volume_std_dev   Nullable(Float64),
		version          UInt64
	) ENGINE = ReplacingMergeTree(version)
	ORDER BY (trade_date, strategy, id)`,
}

type chBarRow struct {
	TradeDate         time.Time `db:"trade_date"`
	Code              string    `db:"code"`
	Open              float64   `db:"open"`
	Close             float64   `db:"close"`
	High              float64   `db:"high"`
	Low               float64   `db:"low"`
	Volume            float64   `db:"volume"`
	TurnoverAmount    float64   `db:"turnover_amount"`
	AmplitudePct      float64   `db:"amplitude_pct"`
	PctChange         float64   `db:"pct_change"`
	TurnoverRatePct   float64   `db:"turnover_rate_pct"`
	PriceChangeAmount float64   `db:"price_change_amount"`
}

// ClickHouseStore keeps bars and signals in ClickHouse.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sqlx.DB
	now    func() time.Time
}

var (
	_ repository.BarStore    = (*ClickHouseStore)(nil)
	_ repository.SignalStore = (*ClickHouseStore)(nil)
)

// NewClickHouseStore creates the store on an open client.
func NewClickHouseStore(client *pkgch.Client) *ClickHouseStore {
	return &ClickHouseStore{client: client, db: client.DB(), now: time.Now}
}

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, clickhouseSchema)
}

// UpsertBars appends a new version of every bar.
func (s *ClickHouseStore) UpsertBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	version := uint64(s.now().UnixNano())

	return s.batch(ctx, `INSERT INTO daily_bars
		(id, trade_date, code, open, close, high, low, volume, turnover_amount,
		 amplitude_pct, pct_change, turnover_rate_pct, price_change_amount, version)`,
		func(stmt *sqlx.Stmt) error {
			for _, b := range bars {
				if _, err := stmt.ExecContext(ctx,
					b.ID(), b.Date, b.Code,
					b.Open, b.Close, b.High, b.Low, b.Volume, b.TurnoverAmount,
					b.AmplitudePct, b.PctChange, b.TurnoverRatePct, b.PriceChangeAmount, version,
				); err != nil {
					return fmt.Errorf("append bar %s: %w", b.ID(), err)
				}
			}
			return nil
		})
}

func (s *ClickHouseStore) QueryBars(ctx context.Context, code string, from, to time.Time) ([]models.Bar, error) {
	var rows []chBarRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT trade_date, code, open, close, high, low, volume, turnover_amount,
		       amplitude_pct, pct_change, turnover_rate_pct, price_change_amount
		FROM daily_bars FINAL
		WHERE code = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC`,
		code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", code, err)
	}

	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		y, m, d := r.TradeDate.Date()
		bars[i] = models.Bar{
			Date:              time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
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
		}
	}
	return bars, nil
}

func (s *ClickHouseStore) UpsertSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	version := uint64(s.now().UnixNano())

	return s.batch(ctx, `INSERT INTO screen_signals
		(id, strategy, trade_date, code, name, matched, reason, qualifying_dates,
		 avg_volume, avg_amplitude, volume_std_dev, version)`,
		func(stmt *sqlx.Stmt) error {
			for _, sig := range signals {
				var avgVol, avgAmp, volStd *float64
				if sig.Baseline != nil {
					avgVol, avgAmp, volStd = &sig.Baseline.AvgVolume, &sig.Baseline.AvgAmplitude, &sig.Baseline.VolumeStdDev
				}
				matched := uint8(0)
				if sig.Matched {
					matched = 1
				}
				dates := sig.QualifyingDates
				if dates == nil {
					dates = []time.Time{}
				}
				if _, err := stmt.ExecContext(ctx,
					sig.ID(), string(sig.Strategy), sig.AsOf, sig.Code, sig.Name,
					matched, sig.Reason, dates, avgVol, avgAmp, volStd, version,
				); err != nil {
					return fmt.Errorf("append signal %s: %w", sig.ID(), err)
				}
			}
			return nil
		})
}

// batch uses the driver's native block insert: one prepared INSERT per tx.
func (s *ClickHouseStore) batch(ctx context.Context, insert string, fn func(*sqlx.Stmt) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}
