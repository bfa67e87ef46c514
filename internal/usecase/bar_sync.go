package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"QuietSpike/internal/domain/models"
	drepo "QuietSpike/internal/domain/repository"
	"QuietSpike/pkg/logger"
	"QuietSpike/pkg/util"
)

// SyncConfig bounds a bar sync run.
type SyncConfig struct {
	Workers       int
	RetryAttempts int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
}

// SyncReport summarizes one sync.
type SyncReport struct {
	Symbols    int           `json:"symbols"`
	Bars       int           `json:"bars"`
	Failed     []models.Skip `json:"failed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// BarSync downloads daily bars for a universe and hands them to a BarProcessor.
type BarSync struct {
	md        drepo.MarketData
	processor *BarProcessor
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       SyncConfig
}

func NewBarSync(md drepo.MarketData, processor *BarProcessor, metrics drepo.Metrics, log *logger.Logger, cfg SyncConfig) *BarSync {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BarSync{md: md, processor: processor, metrics: metrics, log: log, cfg: cfg}
}

type syncResult struct {
	symbol models.Symbol
	bars   int
	err    error
}

// Run syncs [start, end] for every symbol. A failing symbol is recorded and
// the sync moves on. Cancellation stops handing out new symbols.
func (s *BarSync) Run(ctx context.Context, symbols []models.Symbol, start, end time.Time) (*SyncReport, error) {
	report := &SyncReport{Failed: []models.Skip{}, StartedAt: time.Now()}
	s.log.Info("bar sync started",
		logger.Int("symbols", len(symbols)),
		logger.Date("start", start),
		logger.Date("end", end),
	)

	jobs := make(chan models.Symbol)
	results := make(chan syncResult, s.cfg.Workers)
	go func() {
		defer close(jobs)
		for _, sym := range symbols {
			select {
			case jobs <- sym:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				if ctx.Err() != nil {
					continue
				}
				n, err := s.syncSymbol(ctx, sym.Code, start, end)
				results <- syncResult{symbol: sym, bars: n, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		report.Symbols++
		if r.err != nil {
			kind := models.ErrorKind(r.err)
			report.Failed = append(report.Failed, models.Skip{Code: r.symbol.Code, Name: r.symbol.Name, Kind: kind, Reason: r.err.Error()})
			s.metrics.RecordError("sync_" + kind)
			s.log.Error("bar sync failed",
				logger.String("symbol", r.symbol.Code),
				logger.String("kind", kind),
				logger.Error(r.err),
			)
			continue
		}
		report.Bars += r.bars
		s.log.Debug("bars synced", logger.String("symbol", r.symbol.Code), logger.Int("bars", r.bars))
	}

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Code < report.Failed[j].Code })
	report.FinishedAt = time.Now()
	s.log.Info("bar sync finished",
		logger.Int("symbols", report.Symbols),
		logger.Int("bars", report.Bars),
		logger.Int("failed", len(report.Failed)),
		logger.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, ctx.Err()
}

func (s *BarSync) syncSymbol(ctx context.Context, code string, start, end time.Time) (int, error) {
	var bars []models.Bar
	var err error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		bars, err = s.md.FetchDaily(ctx, code, start, end)
		if err == nil || !errors.Is(err, models.ErrUpstreamUnavailable) || attempt == s.cfg.RetryAttempts {
			break
		}
		select {
		case <-time.After(util.BackoffWithJitter(s.cfg.BackoffMin, s.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", code, err)
	}
	if len(bars) == 0 {
		return 0, nil
	}
	if err := s.processor.ProcessBatch(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}
