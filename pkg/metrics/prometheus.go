package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations *prometheus.CounterVec
	skips       *prometheus.CounterVec
	barsStored  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder on the default registry. Call it once per process.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quietspike_evaluations_total",
				Help: "Symbols evaluated by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		skips: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quietspike_skipped_symbols_total",
				Help: "Symbols skipped during screening by error kind",
			},
			[]string{"kind"},
		),
		barsStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quietspike_bars_stored_total",
				Help: "Daily bars handed to a backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quietspike_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quietspike_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation counts a symbol reaching matched or not_matched.
func (r *Recorder) RecordEvaluation(strategy, outcome string) {
	r.evaluations.WithLabelValues(strategy, outcome).Inc()
}

// RecordSkip counts a skipped symbol.
func (r *Recorder) RecordSkip(kind string) {
	r.skips.WithLabelValues(kind).Inc()
}

// RecordBarsStored counts bars written to or published on a backend.
func (r *Recorder) RecordBarsStored(backend string, n int) {
	r.barsStored.WithLabelValues(backend).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop drops everything.
type Noop struct{}

func (Noop) RecordEvaluation(string, string) {}
func (Noop) RecordSkip(string)               {}
func (Noop) RecordBarsStored(string, int)    {}
func (Noop) RecordError(string)              {}
func (Noop) RecordLatency(string, float64)   {}
