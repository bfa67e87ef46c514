package analytics

import (
	"time"

	"QuietSpike/internal/domain/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// flatBar has close 10 and the given amplitude split evenly around the close.
func flatBar(i int, volume, amplitude float64) models.Bar {
	const close = 10.0
	half := close * amplitude / 2
	return models.Bar{
		Date:   day0.AddDate(0, 0, i),
		Code:   "600000",
		Open:   close,
		Close:  close,
		High:   close + half,
		Low:    close - half,
		Volume: volume,
	}
}

func seriesOf(bars ...models.Bar) *models.Series {
	for i := range bars {
		bars[i].Date = day0.AddDate(0, 0, i)
	}
	return &models.Series{Code: "600000", Bars: bars}
}

// scenarioA is ten quiet bars at 1e6 with no range, then three active bars.
func scenarioA() *models.Series {
	bars := make([]models.Bar, 0, 13)
	for i := 0; i < 10; i++ {
		bars = append(bars, flatBar(i, 1_000_000, 0))
	}
	for i := 10; i < 13; i++ {
		bars = append(bars, flatBar(i, 3_000_000, 0.03))
	}
	return seriesOf(bars...)
}

// rollingSeries builds 100 bars: 50 quiet bars, three spike bars with
// volume spikeVolume and swings of at least 5%, then flat bars at 1e6.
func rollingSeries(spikeVolume float64) *models.Series {
	bars := make([]models.Bar, 100)
	closePx := 100.0
	for i := range bars {
		vol := 1_000_000.0
		switch {
		case i < 50:
			closePx = 100 + 0.005*float64(i)
			vol = 500_000
		case i == 50:
			closePx *= 1.05
			vol = spikeVolume
		case i == 51:
			closePx *= 0.92
			vol = spikeVolume
		case i == 52:
			closePx *= 1.08
			vol = spikeVolume
		}
		bars[i] = models.Bar{
			Code:   "000001",
			Open:   closePx,
			Close:  closePx,
			High:   closePx * 1.001,
			Low:    closePx * 0.999,
			Volume: vol,
		}
	}
	s := seriesOf(bars...)
	s.Code = "000001"
	return s
}
