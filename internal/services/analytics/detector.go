package analytics

import (
	"fmt"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/service"
)

// ReasonNoQualifyingBars marks a rolling scan that flagged nothing.
const ReasonNoQualifyingBars = "no qualifying bars"

// SpikeParams configures the quiet-period spike strategy.
type SpikeParams struct {
	QuietDays            int     `yaml:"quiet_days" json:"quiet_days" default:"10"`
	RecentDays           int     `yaml:"recent_days" json:"recent_days" default:"3"`
	VolumeThreshold      float64 `yaml:"volume_threshold" json:"volume_threshold" default:"2"`
	PriceChangeThreshold float64 `yaml:"price_change_threshold" json:"price_change_threshold" default:"0.02"`
}

// RollingParams configures the rolling scan strategy.
// Both windows need at least two days: a volatility over one pct change is
// undefined.
type RollingParams struct {
	LookbackDays        int     `yaml:"lookback_days" json:"lookback_days" default:"50"`
	RecentDays          int     `yaml:"recent_days" json:"recent_days" default:"3"`
	VolumeThreshold     float64 `yaml:"volume_threshold" json:"volume_threshold" default:"1000000"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" json:"volatility_threshold" default:"0.01"`
}

// Config selects a strategy and carries the parameters of both.
type Config struct {
	Strategy models.Strategy `yaml:"strategy" json:"strategy" default:"quiet_spike"`
	Spike    SpikeParams     `yaml:"spike" json:"spike"`
	Rolling  RollingParams   `yaml:"rolling" json:"rolling"`
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		Strategy: models.StrategyQuietSpike,
		Spike:    SpikeParams{QuietDays: 10, RecentDays: 3, VolumeThreshold: 2, PriceChangeThreshold: 0.02},
		Rolling:  RollingParams{LookbackDays: 50, RecentDays: 3, VolumeThreshold: 1e6, VolatilityThreshold: 0.01},
	}
}

// Validate checks the parameters of the selected strategy.
func (c Config) Validate() error {
	switch c.Strategy {
	case models.StrategyQuietSpike:
		p := c.Spike
		if p.QuietDays <= 0 {
			return fmt.Errorf("%w: quiet days must be positive, got %d", models.ErrConfiguration, p.QuietDays)
		}
		return validateSpikeParams(p.RecentDays, p.VolumeThreshold, p.PriceChangeThreshold)
	case models.StrategyRolling:
		p := c.Rolling
		return validateRollingParams(p.LookbackDays, p.RecentDays, p.VolumeThreshold, p.VolatilityThreshold)
	default:
		return fmt.Errorf("%w: unknown strategy %q", models.ErrConfiguration, c.Strategy)
	}
}

// NewDetector validates cfg and returns the detector for its strategy.
func NewDetector(cfg Config) (service.Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy == models.StrategyRolling {
		return &RollingScanner{params: cfg.Rolling}, nil
	}
	return &SpikeDetector{params: cfg.Spike}, nil
}

// SpikeDetector runs ComputeBaseline then Detect.
type SpikeDetector struct {
	params SpikeParams
}

func (d *SpikeDetector) Strategy() models.Strategy { return models.StrategyQuietSpike }

func (d *SpikeDetector) MinBars() int { return d.params.QuietDays + d.params.RecentDays }

func (d *SpikeDetector) Evaluate(series *models.Series) (models.Signal, error) {
	p := d.params
	baseline, err := ComputeBaseline(series, p.QuietDays, p.RecentDays)
	if err != nil {
		return models.Signal{}, err
	}
	return Detect(series, baseline, p.RecentDays, p.VolumeThreshold, p.PriceChangeThreshold)
}

// RollingScanner flags every qualifying historical bar.
type RollingScanner struct {
	params RollingParams
}

func (s *RollingScanner) Strategy() models.Strategy { return models.StrategyRolling }

// MinBars is lookback+recent: the first defined trailing volatility sits at
// index lookback, and its forward window needs recent bars from there.
func (s *RollingScanner) MinBars() int { return s.params.LookbackDays + s.params.RecentDays }

func (s *RollingScanner) Evaluate(series *models.Series) (models.Signal, error) {
	p := s.params
	dates, err := Scan(series, p.LookbackDays, p.RecentDays, p.VolumeThreshold, p.VolatilityThreshold)
	if err != nil {
		return models.Signal{}, err
	}
	last, _ := series.Last()
	sig := models.Signal{
		Code:            series.Code,
		Strategy:        models.StrategyRolling,
		Matched:         len(dates) > 0,
		QualifyingDates: dates,
		AsOf:            last.Date,
	}
	if !sig.Matched {
		sig.Reason = ReasonNoQualifyingBars
	}
	return sig, nil
}

var (
	_ service.Detector = (*SpikeDetector)(nil)
	_ service.Detector = (*RollingScanner)(nil)
)
