package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/service/universe"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/pkg/cache"
	"QuietSpike/pkg/logger"
)

func newScreenFixture(t *testing.T) (*ScreenUseCase, *memStore, *fakePublisher) {
	t.Helper()
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertBars(ctx, quietThenSpike("600000")))
	require.NoError(t, store.UpsertBars(ctx, flat("000001", 13)))
	require.NoError(t, store.UpsertBars(ctx, flat("300750", 4)))

	provider := NewStoreSeriesProvider(store)
	pipeline := NewScreeningPipeline(provider, newRecordingMetrics(), logger.Nop(), PipelineConfig{Workers: 2})
	pub := &fakePublisher{}
	src := universe.StaticSource{{Code: "600000", Name: "PF Bank"}, {Code: "000001", Name: "PA Bank"}, {Code: "300750", Name: "CATL"}}
	uc := NewScreenUseCase(pipeline, provider, src, store, pub, analytics.DefaultConfig(), 30, logger.Nop())
	uc.now = func() time.Time { return day0.AddDate(0, 0, 12).Add(15 * time.Hour) }
	return uc, store, pub
}

func TestScreenPersistsMatches(t *testing.T) {
	uc, store, pub := newScreenFixture(t)

	report, err := uc.Screen(context.Background(), ScreenParams{Persist: true})
	require.NoError(t, err)

	require.Len(t, report.Matched(), 1)
	assert.Equal(t, "PF Bank", report.Matched()[0].Name)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "300750", report.Skipped[0].Code)

	require.Len(t, store.signals, 1)
	assert.Equal(t, "20240313_600000", store.signals[0].ID())
	require.Len(t, pub.signals, 1)
	assert.Equal(t, "600000", pub.signals[0].Code)
}

func TestScreenExplicitCodesAndStrategy(t *testing.T) {
	uc, store, pub := newScreenFixture(t)

	cfg := analytics.DefaultConfig()
	cfg.Rolling.LookbackDays = 5
	cfg.Rolling.RecentDays = 2
	report, err := uc.Screen(context.Background(), ScreenParams{
		Codes:    []string{"000001"},
		Strategy: models.StrategyRolling,
		Detector: &cfg,
		Start:    "20240301",
		End:      "20240313",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyRolling, report.Strategy)
	require.Len(t, report.Signals, 1)
	assert.False(t, report.Signals["000001"].Matched)
	assert.Empty(t, store.signals)
	assert.Empty(t, pub.signals)
}

func TestScreenRejectsBadInput(t *testing.T) {
	uc, _, _ := newScreenFixture(t)

	_, err := uc.Screen(context.Background(), ScreenParams{Strategy: "momentum"})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = uc.Screen(context.Background(), ScreenParams{Start: "20240310", End: "20240301"})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = uc.Screen(context.Background(), ScreenParams{End: "2024-13-45"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestScreenPersistFailure(t *testing.T) {
	uc, store, _ := newScreenFixture(t)
	store.writeErr = errors.New("read-only")

	report, err := uc.Screen(context.Background(), ScreenParams{Persist: true})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Matched(), 1)
}

func TestEvaluateSymbol(t *testing.T) {
	uc, _, _ := newScreenFixture(t)

	sig, err := uc.EvaluateSymbol(context.Background(), "600000", ScreenParams{})
	require.NoError(t, err)
	assert.True(t, sig.Matched)
	require.NotNil(t, sig.Baseline)
	assert.InDelta(t, 1_000_000, sig.Baseline.AvgVolume, 1e-6)

	_, err = uc.EvaluateSymbol(context.Background(), "300750", ScreenParams{})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)

	_, err = uc.EvaluateSymbol(context.Background(), "", ScreenParams{})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = uc.EvaluateSymbol(context.Background(), "999999", ScreenParams{})
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
}

func TestScreenSeesBarsSyncedAfterCachedRead(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bars := quietThenSpike("600000")
	require.NoError(t, store.UpsertBars(ctx, bars[:12]))

	mem := cache.NewMemoryCache()
	defer mem.Close()
	provider := NewCachedSeriesProvider(NewStoreSeriesProvider(store), mem, 6*time.Hour)
	m := newRecordingMetrics()
	pipeline := NewScreeningPipeline(provider, m, logger.Nop(), PipelineConfig{Workers: 1})
	src := universe.StaticSource{{Code: "600000", Name: "PF Bank"}}
	uc := NewScreenUseCase(pipeline, provider, src, store, nil, analytics.DefaultConfig(), 30, logger.Nop())
	uc.now = func() time.Time { return day0.AddDate(0, 0, 12).Add(15 * time.Hour) }

	// an intraday request caches the series before today's bar exists
	report, err := uc.Screen(ctx, ScreenParams{})
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "insufficient_history", report.Skipped[0].Kind)

	md := newFakeMarketData()
	md.bars["600000"] = bars
	bs := NewBarSync(md, NewBarProcessor(nil, store, provider, m, BackendStore, 100), m, logger.Nop(), SyncConfig{Workers: 1})
	synced, err := bs.Run(ctx, []models.Symbol{{Code: "600000"}}, day0, day0.AddDate(0, 0, 12))
	require.NoError(t, err)
	assert.Equal(t, 13, synced.Bars)

	report, err = uc.Screen(ctx, ScreenParams{})
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	require.Len(t, report.Matched(), 1)
	assert.Equal(t, "600000", report.Matched()[0].Code)
}
