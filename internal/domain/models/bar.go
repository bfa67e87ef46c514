package models

import (
	"fmt"
	"time"
)

// DateLayout is the YYYYMMDD form used by the market-data API and record ids.
const DateLayout = "20060102"

// Bar is one trading day for one symbol. Prices are raw (unadjusted).
type Bar struct {
	Date              time.Time `json:"date" db:"trade_date"`
	Code              string    `json:"code" db:"code"`
	Open              float64   `json:"open" db:"open"`
	Close             float64   `json:"close" db:"close"`
	High              float64   `json:"high" db:"high"`
	Low               float64   `json:"low" db:"low"`
	Volume            float64   `json:"volume" db:"volume"`
	TurnoverAmount    float64   `json:"turnover_amount" db:"turnover_amount"`
	AmplitudePct      float64   `json:"amplitude_pct" db:"amplitude_pct"`
	PctChange         float64   `json:"pct_change" db:"pct_change"`
	TurnoverRatePct   float64   `json:"turnover_rate_pct" db:"turnover_rate_pct"`
	PriceChangeAmount float64   `json:"price_change_amount" db:"price_change_amount"`
}

// ID returns the storage key date_code.
func (b Bar) ID() string {
	return RecordID(b.Date, b.Code)
}

// RecordID builds the composite key used by every store.
func RecordID(date time.Time, code string) string {
	return date.Format(DateLayout) + "_" + code
}

// Validate rejects non-positive close, high below low and negative volume.
func (b Bar) Validate() error {
	if b.Close <= 0 {
		return fmt.Errorf("%w: %s close %v must be positive", ErrInvalidBar, b.Date.Format(DateLayout), b.Close)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: %s high %v below low %v", ErrInvalidBar, b.Date.Format(DateLayout), b.High, b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: %s negative volume %v", ErrInvalidBar, b.Date.Format(DateLayout), b.Volume)
	}
	return nil
}

// Amplitude is (high-low)/close.
func (b Bar) Amplitude() (float64, error) {
	if b.Close <= 0 {
		return 0, fmt.Errorf("%w: %s close %v must be positive", ErrInvalidBar, b.Date.Format(DateLayout), b.Close)
	}
	return (b.High - b.Low) / b.Close, nil
}

// Series holds the bars of one symbol in strictly ascending date order.
type Series struct {
	Code string `json:"code"`
	Bars []Bar  `json:"bars"`
}

// NewSeries validates bars and wraps them. Bars are not reordered: input out
// of order is rejected so bad upstream data is never silently coerced.
func NewSeries(code string, bars []Bar) (*Series, error) {
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return nil, fmt.Errorf("series %s: %w", code, err)
		}
		if i == 0 {
			continue
		}
		prev, cur := bars[i-1].Date, bars[i].Date
		if cur.Equal(prev) {
			return nil, fmt.Errorf("series %s: %w: duplicate date %s", code, ErrInvalidBar, cur.Format(DateLayout))
		}
		if cur.Before(prev) {
			return nil, fmt.Errorf("series %s: %w: date %s after %s", code, ErrInvalidBar, cur.Format(DateLayout), prev.Format(DateLayout))
		}
	}
	return &Series{Code: code, Bars: bars}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar.
func (s *Series) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Volumes returns the volume column.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Closes returns the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Symbol is one universe entry. Codes are opaque strings; leading zeros matter.
type Symbol struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
