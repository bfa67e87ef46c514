package models

import "time"

// Requests for screening HTTP endpoints. Defined in domain for consistency and reuse.

type SpikeRequest struct {
	Symbol               string  `query:"symbol" json:"symbol" validate:"required,numeric"`
	Start                string  `query:"start" json:"start" validate:"omitempty,yyyymmdd"`
	End                  string  `query:"end" json:"end" validate:"omitempty,yyyymmdd"`
	QuietDays            int     `query:"quiet_days" json:"quiet_days" default:"10" validate:"gte=1,lte=500"`
	RecentDays           int     `query:"recent_days" json:"recent_days" default:"3" validate:"gte=1,lte=60"`
	VolumeThreshold      float64 `query:"volume_threshold" json:"volume_threshold" default:"2" validate:"gt=0"`
	PriceChangeThreshold float64 `query:"price_change_threshold" json:"price_change_threshold" default:"0.02" validate:"gt=0"`
}

type ScanRequest struct {
	Symbol              string  `query:"symbol" json:"symbol" validate:"required,numeric"`
	Start               string  `query:"start" json:"start" validate:"omitempty,yyyymmdd"`
	End                 string  `query:"end" json:"end" validate:"omitempty,yyyymmdd"`
	LookbackDays        int     `query:"lookback_days" json:"lookback_days" default:"50" validate:"gte=2,lte=1000"`
	RecentDays          int     `query:"recent_days" json:"recent_days" default:"3" validate:"gte=2,lte=60"`
	VolumeThreshold     float64 `query:"volume_threshold" json:"volume_threshold" default:"1000000" validate:"gt=0"`
	VolatilityThreshold float64 `query:"volatility_threshold" json:"volatility_threshold" default:"0.01" validate:"gt=0"`
}

type ScreenRequest struct {
	Strategy string   `json:"strategy" default:"quiet_spike" validate:"oneof=quiet_spike rolling"`
	Symbols  []string `json:"symbols" validate:"omitempty,dive,numeric"`
	Start    string   `json:"start" validate:"omitempty,yyyymmdd"`
	End      string   `json:"end" validate:"omitempty,yyyymmdd"`
	Persist  bool     `json:"persist"`
}

// ScreenResponse is the HTTP view of a Report.
type ScreenResponse struct {
	Strategy   Strategy  `json:"strategy"`
	Evaluated  int       `json:"evaluated"`
	Matched    []Signal  `json:"matched"`
	Skipped    []Skip    `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewScreenResponse flattens r.
func NewScreenResponse(r *Report) ScreenResponse {
	return ScreenResponse{
		Strategy:   r.Strategy,
		Evaluated:  len(r.Signals),
		Matched:    r.Matched(),
		Skipped:    r.Skipped,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

type BarsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,numeric"`
	Start  string `query:"start" json:"start" validate:"omitempty,yyyymmdd"`
	End    string `query:"end" json:"end" validate:"omitempty,yyyymmdd"`
}
