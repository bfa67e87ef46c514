package analytics

import (
	"fmt"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/services/features"
)

// ComputeBaseline summarizes the quietDays bars immediately preceding the
// last recentDays bars, i.e. positions [len-(quiet+recent), len-recent).
func ComputeBaseline(series *models.Series, quietDays, recentDays int) (models.QuietBaseline, error) {
	if quietDays <= 0 {
		return models.QuietBaseline{}, fmt.Errorf("%w: quiet days must be positive, got %d", models.ErrConfiguration, quietDays)
	}
	if recentDays < 0 {
		return models.QuietBaseline{}, fmt.Errorf("%w: recent days must not be negative, got %d", models.ErrConfiguration, recentDays)
	}

	n := series.Len()
	end := n - recentDays
	start := end - quietDays
	if start < 0 {
		return models.QuietBaseline{}, fmt.Errorf("%w: quiet window needs %d bars before the last %d, series has %d",
			models.ErrInsufficientHistory, quietDays, recentDays, n)
	}

	bars := series.Bars[start:end]
	amps, err := features.Amplitudes(bars)
	if err != nil {
		return models.QuietBaseline{}, err
	}
	vols := features.NewWindow(features.Volumes(bars), 0, len(bars))

	base := models.QuietBaseline{
		AvgVolume:    vols.Mean(),
		AvgAmplitude: features.NewWindow(amps, 0, len(amps)).Mean(),
		VolumeStdDev: vols.StdDev(),
	}
	// a single quiet bar shows no dispersion
	if !features.IsDefined(base.VolumeStdDev) {
		base.VolumeStdDev = 0
	}
	return base, nil
}
