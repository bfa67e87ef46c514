package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/pkg/logger"
)

func testPipeline(p *fakeProvider, m *recordingMetrics, workers int) *ScreeningPipeline {
	return NewScreeningPipeline(p, m, logger.Nop(), PipelineConfig{
		Workers:       workers,
		RetryAttempts: 3,
		BackoffMin:    time.Millisecond,
		BackoffMax:    2 * time.Millisecond,
		SymbolTimeout: time.Second,
	})
}

func TestPipelineRejectsBadConfigBeforeAnySymbol(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	cfg := analytics.DefaultConfig()
	cfg.Spike.QuietDays = 0

	report, err := testPipeline(p, newRecordingMetrics(), 2).Run(context.Background(),
		[]models.Symbol{{Code: "600000"}}, cfg, day0, day0.AddDate(0, 0, 20))

	require.ErrorIs(t, err, models.ErrConfiguration)
	assert.Nil(t, report)
	assert.Zero(t, p.callCount("600000"))
}

func TestPipelineIsolatesSymbolFailures(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	p.bars["000001"] = flat("000001", 13)
	p.bars["300750"] = flat("300750", 5)
	bad := flat("688981", 13)
	bad[4].Close = 0
	p.bars["688981"] = bad
	m := newRecordingMetrics()

	universe := []models.Symbol{
		{Code: "688981", Name: "SMIC"},
		{Code: "600000", Name: "PF Bank"},
		{Code: "300750", Name: "CATL"},
		{Code: "000001", Name: "PA Bank"},
		{Code: "999999", Name: "Ghost"},
	}
	report, err := testPipeline(p, m, 3).Run(context.Background(), universe, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)

	require.Len(t, report.Signals, 2)
	assert.True(t, report.Signals["600000"].Matched)
	assert.Equal(t, "PF Bank", report.Signals["600000"].Name)
	assert.False(t, report.Signals["000001"].Matched)

	require.Len(t, report.Skipped, 3)
	assert.Equal(t, []string{"300750", "688981", "999999"},
		[]string{report.Skipped[0].Code, report.Skipped[1].Code, report.Skipped[2].Code})
	assert.Equal(t, "insufficient_history", report.Skipped[0].Kind)
	assert.Equal(t, "invalid_bar", report.Skipped[1].Kind)
	assert.Equal(t, "not_found", report.Skipped[2].Kind)

	assert.Equal(t, 1, m.evaluations["quiet_spike/matched"])
	assert.Equal(t, 1, m.evaluations["quiet_spike/not_matched"])
	assert.Equal(t, 1, m.skips["invalid_bar"])
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestPipelineRetriesUpstreamOnly(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	p.errs["600000"] = []error{
		fmt.Errorf("%w: 502", models.ErrUpstreamUnavailable),
		fmt.Errorf("%w: timeout", models.ErrUpstreamUnavailable),
	}
	p.bars["000001"] = flat("000001", 13)
	p.errs["000001"] = []error{fmt.Errorf("%w: bad row", models.ErrInvalidBar)}
	m := newRecordingMetrics()

	report, err := testPipeline(p, m, 1).Run(context.Background(),
		[]models.Symbol{{Code: "600000"}, {Code: "000001"}}, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)

	assert.Equal(t, 3, p.callCount("600000"))
	assert.True(t, report.Signals["600000"].Matched)
	assert.Equal(t, 1, p.callCount("000001"))
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "invalid_bar", report.Skipped[0].Kind)
	assert.Equal(t, 2, m.errors["provider_retry"])
}

func TestPipelineGivesUpAfterRetryBudget(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	for i := 0; i < 5; i++ {
		p.errs["600000"] = append(p.errs["600000"], fmt.Errorf("%w: down", models.ErrUpstreamUnavailable))
	}

	report, err := testPipeline(p, newRecordingMetrics(), 1).Run(context.Background(),
		[]models.Symbol{{Code: "600000"}}, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, p.callCount("600000"))
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "upstream_unavailable", report.Skipped[0].Kind)
}

func TestPipelineResultIndependentOfWorkerCount(t *testing.T) {
	universe := make([]models.Symbol, 0, 40)
	p := newFakeProvider()
	for i := 0; i < 40; i++ {
		code := fmt.Sprintf("6%05d", i)
		universe = append(universe, models.Symbol{Code: code})
		switch i % 3 {
		case 0:
			p.bars[code] = quietThenSpike(code)
		case 1:
			p.bars[code] = flat(code, 13)
		default:
			p.bars[code] = flat(code, 4)
		}
	}

	serial, err := testPipeline(p, newRecordingMetrics(), 1).Run(context.Background(), universe, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)
	parallel, err := testPipeline(p, newRecordingMetrics(), 8).Run(context.Background(), universe, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)

	assert.Equal(t, serial.Signals, parallel.Signals)
	assert.Equal(t, serial.Skipped, parallel.Skipped)
	assert.Len(t, serial.Matched(), 14)
}

func TestPipelineDeduplicatesUniverse(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")

	report, err := testPipeline(p, newRecordingMetrics(), 4).Run(context.Background(),
		[]models.Symbol{{Code: "600000"}, {Code: "600000"}}, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)
	assert.Len(t, report.Signals, 1)
	assert.Equal(t, 1, p.callCount("600000"))
}

func TestPipelineCancellationReturnsPartialReport(t *testing.T) {
	p := newFakeProvider()
	universe := make([]models.Symbol, 0, 20)
	for i := 0; i < 20; i++ {
		code := fmt.Sprintf("0%05d", i)
		p.bars[code] = quietThenSpike(code)
		universe = append(universe, models.Symbol{Code: code})
	}

	ctx, cancel := context.WithCancel(context.Background())
	var started int32
	p.before = func(string) {
		if atomic.AddInt32(&started, 1) == 2 {
			cancel()
		}
	}

	report, err := testPipeline(p, newRecordingMetrics(), 1).Run(ctx, universe, analytics.DefaultConfig(), day0, day0.AddDate(0, 0, 20))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	// symbols already in flight complete normally
	assert.GreaterOrEqual(t, len(report.Signals), 2)
	assert.Less(t, len(report.Signals), len(universe))
	for _, sig := range report.Signals {
		assert.True(t, sig.Matched)
	}
	assert.Empty(t, report.Skipped)
}

func TestPipelineSkipsSeriesTooShortToMatch(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = flat("600000", 6)
	p.bars["000001"] = flat("000001", 7)
	m := newRecordingMetrics()
	cfg := analytics.DefaultConfig()
	cfg.Strategy = models.StrategyRolling
	cfg.Rolling.LookbackDays = 5
	cfg.Rolling.RecentDays = 2

	report, err := testPipeline(p, m, 2).Run(context.Background(),
		[]models.Symbol{{Code: "600000"}, {Code: "000001"}}, cfg, day0, day0.AddDate(0, 0, 20))
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "600000", report.Skipped[0].Code)
	assert.Equal(t, "insufficient_history", report.Skipped[0].Kind)
	assert.Contains(t, report.Skipped[0].Reason, "needs 7 bars, series has 6")
	require.Contains(t, report.Signals, "000001")
	assert.False(t, report.Signals["000001"].Matched)
	assert.Equal(t, 1, m.skips["insufficient_history"])
}
