package analytics

import (
	"fmt"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/services/features"
)

const (
	ReasonQuietTooVolatile   = "quiet period too volatile"
	ReasonQuietVolumeErratic = "quiet period volume too erratic"
	ReasonNoConfirmedSpike   = "no confirmed spike"

	// quiet volume std above this share of its mean is erratic
	erraticVolumeRatio = 0.5
)

// Detect decides whether the last recentDays bars are a spike relative to
// baseline. Gates run in order and stop at the first failure.
func Detect(series *models.Series, baseline models.QuietBaseline, recentDays int, volumeThreshold, priceChangeThreshold float64) (models.Signal, error) {
	if err := validateSpikeParams(recentDays, volumeThreshold, priceChangeThreshold); err != nil {
		return models.Signal{}, err
	}
	n := series.Len()
	if n < recentDays {
		return models.Signal{}, fmt.Errorf("%w: recent window needs %d bars, series has %d",
			models.ErrInsufficientHistory, recentDays, n)
	}

	recent := series.Bars[n-recentDays:]
	amps, err := features.Amplitudes(recent)
	if err != nil {
		return models.Signal{}, err
	}

	last, _ := series.Last()
	sig := models.Signal{
		Code:     series.Code,
		Strategy: models.StrategyQuietSpike,
		Baseline: &baseline,
		AsOf:     last.Date,
	}

	switch {
	case baseline.AvgAmplitude > priceChangeThreshold:
		sig.Reason = ReasonQuietTooVolatile
		return sig, nil
	case baseline.VolumeStdDev > baseline.AvgVolume*erraticVolumeRatio:
		sig.Reason = ReasonQuietVolumeErratic
		return sig, nil
	}

	recentVolume := features.NewWindow(features.Volumes(recent), 0, len(recent)).Mean()
	recentAmplitude := features.NewWindow(amps, 0, len(amps)).Mean()
	volumeSpike := recentVolume > baseline.AvgVolume*volumeThreshold
	priceSpike := recentAmplitude > priceChangeThreshold

	if volumeSpike && priceSpike {
		sig.Matched = true
		return sig, nil
	}
	sig.Reason = ReasonNoConfirmedSpike
	return sig, nil
}

func validateSpikeParams(recentDays int, volumeThreshold, priceChangeThreshold float64) error {
	if recentDays <= 0 {
		return fmt.Errorf("%w: recent days must be positive, got %d", models.ErrConfiguration, recentDays)
	}
	if volumeThreshold <= 0 {
		return fmt.Errorf("%w: volume threshold must be positive, got %v", models.ErrConfiguration, volumeThreshold)
	}
	if priceChangeThreshold <= 0 {
		return fmt.Errorf("%w: price change threshold must be positive, got %v", models.ErrConfiguration, priceChangeThreshold)
	}
	return nil
}
