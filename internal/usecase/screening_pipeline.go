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
	"QuietSpike/internal/domain/service"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/pkg/logger"
	"QuietSpike/pkg/util"
)

// PipelineConfig bounds concurrency and retries of a screening run.
type PipelineConfig struct {
	Workers       int
	RetryAttempts int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	SymbolTimeout time.Duration
}

// ScreeningPipeline evaluates a universe of symbols with one detector.
type ScreeningPipeline struct {
	provider drepo.SeriesProvider
	metrics  drepo.Metrics
	log      *logger.Logger
	cfg      PipelineConfig
	now      func() time.Time
}

func NewScreeningPipeline(provider drepo.SeriesProvider, metrics drepo.Metrics, log *logger.Logger, cfg PipelineConfig) *ScreeningPipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.SymbolTimeout <= 0 {
		cfg.SymbolTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ScreeningPipeline{provider: provider, metrics: metrics, log: log, cfg: cfg, now: time.Now}
}

type outcome struct {
	symbol models.Symbol
	signal models.Signal
	err    error
}

// Run evaluates every symbol of universe over [start, end].
//
// An invalid detector configuration fails the run before any symbol is
// touched. Data problems of one symbol become a Skip and never stop the
// batch. If ctx is cancelled, symbols already started still finish, no new
// ones start, and the partial report is returned with ctx.Err().
func (p *ScreeningPipeline) Run(ctx context.Context, universe []models.Symbol, cfg analytics.Config, start, end time.Time) (*models.Report, error) {
	det, err := analytics.NewDetector(cfg)
	if err != nil {
		return nil, err
	}

	report := models.NewReport(det.Strategy())
	report.StartedAt = p.now()
	runLog := p.log.With(logger.String("strategy", string(det.Strategy())))
	runLog.Info("screening started",
		logger.Int("symbols", len(universe)),
		logger.Int("workers", p.cfg.Workers),
		logger.Date("start", start),
		logger.Date("end", end),
	)

	jobs := make(chan models.Symbol)
	results := make(chan outcome, p.cfg.Workers)

	go func() {
		defer close(jobs)
		seen := make(map[string]bool, len(universe))
		for _, s := range universe {
			if seen[s.Code] {
				continue
			}
			seen[s.Code] = true
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				// symbol boundary: the only place a run can stop
				if ctx.Err() != nil {
					continue
				}
				results <- p.evaluate(ctx, det, s, start, end)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			kind := models.ErrorKind(r.err)
			report.Skipped = append(report.Skipped, models.Skip{
				Code:   r.symbol.Code,
				Name:   r.symbol.Name,
				Kind:   kind,
				Reason: r.err.Error(),
			})
			p.metrics.RecordSkip(kind)
			runLog.Warn("symbol skipped",
				logger.String("symbol", r.symbol.Code),
				logger.String("kind", kind),
				logger.Error(r.err),
			)
			continue
		}
		report.Signals[r.symbol.Code] = r.signal
		p.metrics.RecordEvaluation(string(det.Strategy()), string(r.signal.Outcome()))
	}

	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Code < report.Skipped[j].Code })
	report.FinishedAt = p.now()

	runLog.Info("screening finished",
		logger.Int("evaluated", len(report.Signals)),
		logger.Int("matched", len(report.Matched())),
		logger.Int("skipped", len(report.Skipped)),
		logger.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (p *ScreeningPipeline) evaluate(ctx context.Context, det service.Detector, s models.Symbol, start, end time.Time) outcome {
	begin := time.Now()
	defer func() { p.metrics.RecordLatency("evaluate_symbol", time.Since(begin).Seconds()) }()

	// detached from run cancellation so a started symbol completes, but bounded
	symCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.SymbolTimeout)
	defer cancel()

	series, err := p.loadSeries(symCtx, s.Code, start, end)
	if err != nil {
		return outcome{symbol: s, err: err}
	}

	sig, err := evaluateSeries(det, series)
	if err != nil {
		return outcome{symbol: s, err: err}
	}
	sig.Code = s.Code
	sig.Name = s.Name
	return outcome{symbol: s, signal: sig}
}

// evaluateSeries rejects series shorter than the detector can ever match on.
func evaluateSeries(det service.Detector, series *models.Series) (models.Signal, error) {
	if n, need := series.Len(), det.MinBars(); n < need {
		return models.Signal{}, fmt.Errorf("%w: %s needs %d bars, series has %d",
			models.ErrInsufficientHistory, det.Strategy(), need, n)
	}
	return det.Evaluate(series)
}

// loadSeries retries only upstream outages.
func (p *ScreeningPipeline) loadSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		series, err := p.provider.Series(ctx, code, start, end)
		if err == nil {
			return series, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrUpstreamUnavailable) || attempt == p.cfg.RetryAttempts {
			break
		}
		p.metrics.RecordError("provider_retry")
		select {
		case <-time.After(util.BackoffWithJitter(p.cfg.BackoffMin, p.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, ctx.Err())
		}
	}
	return nil, lastErr
}
