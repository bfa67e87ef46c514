package analytics

import (
	"fmt"
	"time"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/services/features"
)

// ForwardMultiplier scales both thresholds for the forward window.
const ForwardMultiplier = 5

// minRollingDays is the shortest window with a defined sample std.
const minRollingDays = 2

// Aggregates holds the four rolling series aligned with the bars. NaN marks
// an undefined position.
type Aggregates struct {
	TrailingAvgVolume  []float64
	TrailingVolatility []float64
	ForwardAvgVolume   []float64
	ForwardVolatility  []float64
}

// RollingAggregates computes trailing aggregates over [i-lookback+1, i] and
// forward aggregates over [i, i+recent). Volatility is the sample std of
// close-to-close pct change.
func RollingAggregates(series *models.Series, lookbackDays, recentDays int) Aggregates {
	vols := series.Volumes()
	pct := features.PctChanges(series.Closes())
	return Aggregates{
		TrailingAvgVolume:  features.Trailing(vols, lookbackDays, features.MeanStat),
		TrailingVolatility: features.Trailing(pct, lookbackDays, features.StdDevStat),
		ForwardAvgVolume:   features.Forward(vols, recentDays, features.MeanStat),
		ForwardVolatility:  features.Forward(pct, recentDays, features.StdDevStat),
	}
}

// Defined reports whether all four aggregates exist at i.
func (a Aggregates) Defined(i int) bool {
	return features.IsDefined(a.TrailingAvgVolume[i]) &&
		features.IsDefined(a.TrailingVolatility[i]) &&
		features.IsDefined(a.ForwardAvgVolume[i]) &&
		features.IsDefined(a.ForwardVolatility[i])
}

// Qualifies applies the quiet-then-active rule at i. Undefined positions never qualify.
func (a Aggregates) Qualifies(i int, volumeThreshold, volatilityThreshold float64) bool {
	if !a.Defined(i) {
		return false
	}
	return a.TrailingAvgVolume[i] < volumeThreshold &&
		a.TrailingVolatility[i] < volatilityThreshold &&
		a.ForwardAvgVolume[i] > volumeThreshold*ForwardMultiplier &&
		a.ForwardVolatility[i] > volatilityThreshold*ForwardMultiplier
}

// Scan returns, in chronological order, the dates of every bar that closes a
// quiet lookback window and opens an active forward window.
func Scan(series *models.Series, lookbackDays, recentDays int, volumeThreshold, volatilityThreshold float64) ([]time.Time, error) {
	if err := validateRollingParams(lookbackDays, recentDays, volumeThreshold, volatilityThreshold); err != nil {
		return nil, err
	}
	n := series.Len()
	if n < lookbackDays {
		return nil, fmt.Errorf("%w: lookback needs %d bars, series has %d", models.ErrInsufficientHistory, lookbackDays, n)
	}
	for _, b := range series.Bars {
		if b.Close <= 0 {
			return nil, fmt.Errorf("%w: %s close %v must be positive", models.ErrInvalidBar, b.Date.Format(models.DateLayout), b.Close)
		}
	}

	agg := RollingAggregates(series, lookbackDays, recentDays)
	dates := make([]time.Time, 0)
	for i := 0; i < n; i++ {
		if agg.Qualifies(i, volumeThreshold, volatilityThreshold) {
			dates = append(dates, series.Bars[i].Date)
		}
	}
	return dates, nil
}

func validateRollingParams(lookbackDays, recentDays int, volumeThreshold, volatilityThreshold float64) error {
	if lookbackDays < minRollingDays {
		return fmt.Errorf("%w: lookback days must be at least %d, got %d", models.ErrConfiguration, minRollingDays, lookbackDays)
	}
	if recentDays < minRollingDays {
		return fmt.Errorf("%w: recent days must be at least %d, got %d", models.ErrConfiguration, minRollingDays, recentDays)
	}
	if volumeThreshold <= 0 {
		return fmt.Errorf("%w: volume threshold must be positive, got %v", models.ErrConfiguration, volumeThreshold)
	}
	if volatilityThreshold <= 0 {
		return fmt.Errorf("%w: volatility threshold must be positive, got %v", models.ErrConfiguration, volatilityThreshold)
	}
	return nil
}
