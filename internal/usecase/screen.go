package usecase

import (
	"context"
	"fmt"
	"time"

	"QuietSpike/internal/domain/models"
	drepo "QuietSpike/internal/domain/repository"
	"QuietSpike/internal/service/universe"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/pkg/logger"
	"QuietSpike/pkg/util"
)

// ScreenParams selects what one screening run looks at. Empty fields fall
// back to the configured defaults.
type ScreenParams struct {
	// Codes overrides the universe when non-empty.
	Codes    []string
	Start    string
	End      string
	Strategy models.Strategy
	// Detector replaces the configured detector parameters when set.
	Detector *analytics.Config
	// Persist stores and publishes matched signals.
	Persist bool
}

// ScreenUseCase runs the screening pipeline and fans out its matches.
type ScreenUseCase struct {
	pipeline    *ScreeningPipeline
	provider    drepo.SeriesProvider
	universe    drepo.UniverseSource
	signals     drepo.SignalStore
	publisher   drepo.SignalPublisher
	detector    analytics.Config
	historyDays int
	log         *logger.Logger
	now         func() time.Time
}

func NewScreenUseCase(
	pipeline *ScreeningPipeline,
	provider drepo.SeriesProvider,
	source drepo.UniverseSource,
	signals drepo.SignalStore,
	publisher drepo.SignalPublisher,
	detector analytics.Config,
	historyDays int,
	log *logger.Logger,
) *ScreenUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ScreenUseCase{
		pipeline:    pipeline,
		provider:    provider,
		universe:    source,
		signals:     signals,
		publisher:   publisher,
		detector:    detector,
		historyDays: historyDays,
		log:         log,
		now:         time.Now,
	}
}

// Screen resolves the universe and date range, runs the pipeline and, when
// asked, persists and publishes matched signals. A partial report is
// returned with the cancellation error.
func (u *ScreenUseCase) Screen(ctx context.Context, params ScreenParams) (*models.Report, error) {
	cfg := u.config(params.Detector, params.Strategy)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start, end, err := u.dateRange(params.Start, params.End)
	if err != nil {
		return nil, err
	}

	var symbols []models.Symbol
	if len(params.Codes) > 0 {
		symbols, err = universe.FromCodes(params.Codes).Symbols(ctx)
	} else {
		symbols, err = u.universe.Symbols(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	report, runErr := u.pipeline.Run(ctx, symbols, cfg, start, end)
	if report == nil {
		return nil, runErr
	}
	if params.Persist {
		if err := u.persist(context.WithoutCancel(ctx), report); err != nil {
			return report, err
		}
	}
	return report, runErr
}

// EvaluateSymbol screens one code synchronously.
func (u *ScreenUseCase) EvaluateSymbol(ctx context.Context, code string, params ScreenParams) (models.Signal, error) {
	cfg := u.config(params.Detector, params.Strategy)
	det, err := analytics.NewDetector(cfg)
	if err != nil {
		return models.Signal{}, err
	}
	series, err := u.Series(ctx, code, params.Start, params.End)
	if err != nil {
		return models.Signal{}, err
	}
	return evaluateSeries(det, series)
}

// Series returns the validated bars of code over the requested range.
func (u *ScreenUseCase) Series(ctx context.Context, code, startStr, endStr string) (*models.Series, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: symbol code is required", models.ErrConfiguration)
	}
	start, end, err := u.dateRange(startStr, endStr)
	if err != nil {
		return nil, err
	}
	return u.provider.Series(ctx, code, start, end)
}

func (u *ScreenUseCase) config(override *analytics.Config, strategy models.Strategy) analytics.Config {
	cfg := u.detector
	if override != nil {
		cfg = *override
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	return cfg
}

func (u *ScreenUseCase) dateRange(start, end string) (time.Time, time.Time, error) {
	from, to, err := util.DateRange(start, end, u.now(), u.historyDays)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	return from, to, nil
}

func (u *ScreenUseCase) persist(ctx context.Context, report *models.Report) error {
	matched := report.Matched()
	if len(matched) == 0 {
		return nil
	}
	if u.signals != nil {
		if err := u.signals.UpsertSignals(ctx, matched); err != nil {
			u.log.Error("persist signals failed", logger.Int("signals", len(matched)), logger.Error(err))
			return fmt.Errorf("persist signals: %w", err)
		}
	}
	if u.publisher != nil {
		if err := u.publisher.PublishSignals(ctx, matched); err != nil {
			u.log.Error("publish signals failed", logger.Int("signals", len(matched)), logger.Error(err))
			return fmt.Errorf("publish signals: %w", err)
		}
	}
	u.log.Info("signals persisted", logger.Int("signals", len(matched)))
	return nil
}
