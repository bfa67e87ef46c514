package analytics

import (
	"testing"

	"QuietSpike/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBaselineWindow(t *testing.T) {
	// the recent bars must not leak into the baseline
	s := scenarioA()
	base, err := ComputeBaseline(s, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000.0, base.AvgVolume)
	assert.Equal(t, 0.0, base.AvgAmplitude)
	assert.Equal(t, 0.0, base.VolumeStdDev)
}

func TestComputeBaselineUsesSampleStd(t *testing.T) {
	s := seriesOf(flatBar(0, 1, 0.01), flatBar(1, 2, 0.02), flatBar(2, 3, 0.03), flatBar(3, 99, 0.5))
	base, err := ComputeBaseline(s, 3, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, base.AvgVolume, 1e-12)
	assert.InDelta(t, 0.02, base.AvgAmplitude, 1e-12)
	assert.InDelta(t, 1.0, base.VolumeStdDev, 1e-12)
}

func TestComputeBaselineIsPure(t *testing.T) {
	s := seriesOf(flatBar(0, 120, 0.01), flatBar(1, 80, 0.012), flatBar(2, 95, 0.02), flatBar(3, 300, 0.04))
	first, err := ComputeBaseline(s, 3, 1)
	require.NoError(t, err)
	second, err := ComputeBaseline(s, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeBaselineInsufficientHistory(t *testing.T) {
	s := scenarioA() // 13 bars
	for _, tc := range []struct{ quiet, recent int }{{11, 3}, {13, 1}, {1, 13}, {20, 0}} {
		_, err := ComputeBaseline(s, tc.quiet, tc.recent)
		assert.ErrorIs(t, err, models.ErrInsufficientHistory, "quiet=%d recent=%d", tc.quiet, tc.recent)
	}
	_, err := ComputeBaseline(s, 10, 3)
	assert.NoError(t, err)
	_, err = ComputeBaseline(s, 13, 0)
	assert.NoError(t, err)
}

func TestComputeBaselineConfiguration(t *testing.T) {
	s := scenarioA()
	_, err := ComputeBaseline(s, 0, 3)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = ComputeBaseline(s, 5, -1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestComputeBaselineInvalidClose(t *testing.T) {
	bad := flatBar(1, 100, 0)
	bad.Close = 0
	s := seriesOf(flatBar(0, 100, 0), bad, flatBar(2, 100, 0))
	_, err := ComputeBaseline(s, 2, 1)
	assert.ErrorIs(t, err, models.ErrInvalidBar)
}

func TestComputeBaselineSingleQuietBar(t *testing.T) {
	s := seriesOf(flatBar(0, 100, 0.01), flatBar(1, 500, 0.05))
	base, err := ComputeBaseline(s, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, base.AvgVolume)
	assert.Equal(t, 0.0, base.VolumeStdDev)
}
