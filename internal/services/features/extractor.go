package features

import (
	"math"

	"QuietSpike/internal/domain/models"
)

// PctChanges computes r_t = (C_t - C_{t-1}) / C_{t-1}. The first entry has no
// predecessor and is NaN, so the output is aligned with the input.
func PctChanges(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 || closes[i-1] <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}

// Amplitudes computes (high-low)/close for every bar.
func Amplitudes(bars []models.Bar) ([]float64, error) {
	out := make([]float64, len(bars))
	for i, b := range bars {
		a, err := b.Amplitude()
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// Volumes extracts bar volumes.
func Volumes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
