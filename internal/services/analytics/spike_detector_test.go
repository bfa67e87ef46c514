package analytics

import (
	"testing"

	"QuietSpike/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectSeries(t *testing.T, s *models.Series, quiet, recent int, vt, pct float64) models.Signal {
	t.Helper()
	base, err := ComputeBaseline(s, quiet, recent)
	require.NoError(t, err)
	sig, err := Detect(s, base, recent, vt, pct)
	require.NoError(t, err)
	return sig
}

func TestDetectConfirmedSpike(t *testing.T) {
	sig := detectSeries(t, scenarioA(), 10, 3, 2, 0.02)
	assert.True(t, sig.Matched)
	assert.Empty(t, sig.Reason)
	assert.Equal(t, models.StrategyQuietSpike, sig.Strategy)
	assert.Equal(t, "600000", sig.Code)
	assert.Equal(t, day0.AddDate(0, 0, 12), sig.AsOf)
	require.NotNil(t, sig.Baseline)
	assert.Equal(t, 1_000_000.0, sig.Baseline.AvgVolume)
}

func TestDetectErraticQuietVolume(t *testing.T) {
	recentWindows := [][]models.Bar{
		{flatBar(0, 3_000_000, 0.03), flatBar(0, 3_000_000, 0.03), flatBar(0, 3_000_000, 0.03)},
		{flatBar(0, 10, 0), flatBar(0, 10, 0), flatBar(0, 10, 0)},
		{flatBar(0, 90_000_000, 0.2), flatBar(0, 1, 0.001), flatBar(0, 5_000_000, 0.05)},
	}
	for _, recent := range recentWindows {
		bars := make([]models.Bar, 0, 13)
		for i := 0; i < 10; i++ {
			vol := 200_000.0
			if i%2 == 1 {
				vol = 1_800_000
			}
			bars = append(bars, flatBar(i, vol, 0))
		}
		bars = append(bars, recent...)
		sig := detectSeries(t, seriesOf(bars...), 10, 3, 2, 0.02)
		assert.False(t, sig.Matched)
		assert.Equal(t, ReasonQuietVolumeErratic, sig.Reason)
	}
}

func TestDetectQuietTooVolatile(t *testing.T) {
	bars := make([]models.Bar, 0, 13)
	for i := 0; i < 10; i++ {
		// volatile and erratic: the amplitude gate is checked first
		vol := 200_000.0
		if i%2 == 1 {
			vol = 1_800_000
		}
		bars = append(bars, flatBar(i, vol, 0.05))
	}
	for i := 10; i < 13; i++ {
		bars = append(bars, flatBar(i, 3_000_000, 0.03))
	}
	sig := detectSeries(t, seriesOf(bars...), 10, 3, 2, 0.02)
	assert.False(t, sig.Matched)
	assert.Equal(t, ReasonQuietTooVolatile, sig.Reason)
}

func TestDetectNoConfirmedSpike(t *testing.T) {
	// volume spike without a price spike
	bars := make([]models.Bar, 0, 13)
	for i := 0; i < 10; i++ {
		bars = append(bars, flatBar(i, 1_000_000, 0))
	}
	for i := 10; i < 13; i++ {
		bars = append(bars, flatBar(i, 3_000_000, 0.01))
	}
	sig := detectSeries(t, seriesOf(bars...), 10, 3, 2, 0.02)
	assert.False(t, sig.Matched)
	assert.Equal(t, ReasonNoConfirmedSpike, sig.Reason)
}

func TestDetectVolumeThresholdMonotonic(t *testing.T) {
	s := scenarioA()
	prev := true
	for _, vt := range []float64{0.5, 1, 2, 2.9, 3, 3.1, 5, 100} {
		sig := detectSeries(t, s, 10, 3, vt, 0.02)
		if !prev {
			assert.False(t, sig.Matched, "volume threshold %v turned a non-match into a match", vt)
		}
		prev = sig.Matched
	}
	assert.False(t, prev)
}

func TestDetectPriceThresholdMonotonic(t *testing.T) {
	s := scenarioA()
	prev := true
	for _, pct := range []float64{0.001, 0.01, 0.02, 0.029, 0.031, 0.05, 1} {
		sig := detectSeries(t, s, 10, 3, 2, pct)
		if !prev {
			assert.False(t, sig.Matched, "price threshold %v turned a non-match into a match", pct)
		}
		prev = sig.Matched
	}
	assert.False(t, prev)
}

func TestDetectShortSeries(t *testing.T) {
	s := seriesOf(flatBar(0, 1, 0.01), flatBar(1, 1, 0.01))
	_, err := Detect(s, models.QuietBaseline{AvgVolume: 1}, 3, 2, 0.02)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestDetectInvalidRecentBar(t *testing.T) {
	s := scenarioA()
	s.Bars[12].Close = 0
	_, err := Detect(s, models.QuietBaseline{AvgVolume: 1_000_000}, 3, 2, 0.02)
	assert.ErrorIs(t, err, models.ErrInvalidBar)
}

func TestDetectConfiguration(t *testing.T) {
	s := scenarioA()
	base := models.QuietBaseline{AvgVolume: 1}
	for _, tc := range []struct {
		recent  int
		vt, pct float64
	}{{0, 2, 0.02}, {3, 0, 0.02}, {3, 2, 0}, {3, -1, 0.02}} {
		_, err := Detect(s, base, tc.recent, tc.vt, tc.pct)
		assert.ErrorIs(t, err, models.ErrConfiguration)
	}
}
