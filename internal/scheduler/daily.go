package scheduler

import (
	"context"
	"fmt"
	"time"

	drepo "QuietSpike/internal/domain/repository"
	"QuietSpike/internal/usecase"
	"QuietSpike/pkg/logger"
	"QuietSpike/pkg/util"
)

// DailyTaskName is the name of the end-of-day sync and screen task.
const DailyTaskName = "daily_screen"

// DailyTask syncs the last syncDays of bars for the universe, then screens
// it and persists the matches.
func DailyTask(source drepo.UniverseSource, sync *usecase.BarSync, screen *usecase.ScreenUseCase, syncDays int, log *logger.Logger) Task {
	return func(ctx context.Context) error {
		symbols, err := source.Symbols(ctx)
		if err != nil {
			return fmt.Errorf("load universe: %w", err)
		}
		if sync != nil {
			end := util.TruncateDay(time.Now())
			start := end.AddDate(0, 0, -syncDays)
			rep, err := sync.Run(ctx, symbols, start, end)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if len(rep.Failed) > 0 {
				log.Warn("sync finished with failures", logger.Int("failed", len(rep.Failed)))
			}
		}
		report, err := screen.Screen(ctx, usecase.ScreenParams{Persist: true})
		if err != nil {
			return fmt.Errorf("screen: %w", err)
		}
		codes := make([]string, 0, len(report.Matched()))
		for _, s := range report.Matched() {
			codes = append(codes, s.Code)
		}
		log.Info("daily screen matched", logger.Strings("codes", codes), logger.Int("skipped", len(report.Skipped)))
		return nil
	}
}
