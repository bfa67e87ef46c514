package models

import (
	"sort"
	"time"
)

// Strategy names a detector.
type Strategy string

const (
	StrategyQuietSpike Strategy = "quiet_spike"
	StrategyRolling    Strategy = "rolling"
)

// Outcome is the terminal state of one symbol in a run.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeNotMatched Outcome = "not_matched"
	OutcomeSkipped    Outcome = "skipped"
)

// QuietBaseline summarizes the quiet window preceding the recent bars.
type QuietBaseline struct {
	AvgVolume    float64 `json:"avg_volume"`
	AvgAmplitude float64 `json:"avg_amplitude"`
	VolumeStdDev float64 `json:"volume_std_dev"`
}

// Signal is the result of evaluating one series with one strategy.
// Spike detection fills Matched/Reason/Baseline, the rolling scan fills
// QualifyingDates (Matched is true when any date qualified).
type Signal struct {
	Code            string         `json:"code"`
	Name            string         `json:"name,omitempty"`
	Strategy        Strategy       `json:"strategy"`
	Matched         bool           `json:"matched"`
	Reason          string         `json:"reason,omitempty"`
	QualifyingDates []time.Time    `json:"qualifying_dates,omitempty"`
	Baseline        *QuietBaseline `json:"baseline,omitempty"`
	AsOf            time.Time      `json:"as_of"`
}

// ID is the storage key of the signal, keyed by the last bar evaluated.
func (s Signal) ID() string {
	return RecordID(s.AsOf, s.Code)
}

// Outcome reports matched or not matched.
func (s Signal) Outcome() Outcome {
	if s.Matched {
		return OutcomeMatched
	}
	return OutcomeNotMatched
}

// Skip records a symbol that could not be evaluated.
type Skip struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Report is the outcome of one screening run.
type Report struct {
	Strategy   Strategy          `json:"strategy"`
	Signals    map[string]Signal `json:"signals"`
	Skipped    []Skip            `json:"skipped"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// NewReport returns an empty report for strategy.
func NewReport(strategy Strategy) *Report {
	return &Report{
		Strategy: strategy,
		Signals:  make(map[string]Signal),
		Skipped:  []Skip{},
	}
}

// Matched returns matched signals ordered by code.
func (r *Report) Matched() []Signal {
	out := make([]Signal, 0)
	for _, s := range r.Signals {
		if s.Matched {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Ordered returns every signal ordered by code.
func (r *Report) Ordered() []Signal {
	out := make([]Signal, 0, len(r.Signals))
	for _, s := range r.Signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
