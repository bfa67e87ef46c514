package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"QuietSpike/internal/domain/models"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// quietThenSpike is ten flat bars at 1e6 followed by three bars at 3e6 with a 3% range.
func quietThenSpike(code string) []models.Bar {
	bars := make([]models.Bar, 0, 13)
	for i := 0; i < 13; i++ {
		vol, amp := 1_000_000.0, 0.0
		if i >= 10 {
			vol, amp = 3_000_000, 0.03
		}
		bars = append(bars, models.Bar{
			Date:   day0.AddDate(0, 0, i),
			Code:   code,
			Open:   10,
			Close:  10,
			High:   10 + 5*amp,
			Low:    10 - 5*amp,
			Volume: vol,
		})
	}
	return bars
}

// flat is n bars of constant volume with no range.
func flat(code string, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{Date: day0.AddDate(0, 0, i), Code: code, Open: 10, Close: 10, High: 10, Low: 10, Volume: 1_000_000}
	}
	return bars
}

type fakeProvider struct {
	mu     sync.Mutex
	bars   map[string][]models.Bar
	errs   map[string][]error
	calls  map[string]int
	delay  time.Duration
	before func(code string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{bars: map[string][]models.Bar{}, errs: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeProvider) Series(ctx context.Context, code string, _, _ time.Time) (*models.Series, error) {
	if f.before != nil {
		f.before(code)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	n := f.calls[code]
	f.calls[code]++
	var err error
	if errs := f.errs[code]; n < len(errs) {
		err = errs[n]
	}
	bars, ok := f.bars[code]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolNotFound, code)
	}
	return models.NewSeries(code, bars)
}

func (f *fakeProvider) callCount(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[code]
}

type recordingMetrics struct {
	mu          sync.Mutex
	evaluations map[string]int
	skips       map[string]int
	stored      map[string]int
	errors      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{evaluations: map[string]int{}, skips: map[string]int{}, stored: map[string]int{}, errors: map[string]int{}}
}

func (m *recordingMetrics) RecordEvaluation(strategy, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[strategy+"/"+outcome]++
}

func (m *recordingMetrics) RecordSkip(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips[kind]++
}

func (m *recordingMetrics) RecordBarsStored(backend string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[backend] += n
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

type memStore struct {
	mu       sync.Mutex
	bars     map[string]models.Bar
	signals  []models.Signal
	upserts  int
	queryErr error
	writeErr error
}

func newMemStore() *memStore { return &memStore{bars: map[string]models.Bar{}} }

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) UpsertBars(_ context.Context, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.upserts++
	for _, b := range bars {
		s.bars[b.ID()] = b
	}
	return nil
}

func (s *memStore) QueryBars(_ context.Context, code string, from, to time.Time) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []models.Bar
	for _, b := range s.bars {
		if b.Code == code && !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) UpsertSignals(_ context.Context, signals []models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.signals = append(s.signals, signals...)
	return nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

type fakePublisher struct {
	mu      sync.Mutex
	bars    [][]models.Bar
	signals []models.Signal
	err     error
	closed  bool
}

func (p *fakePublisher) PublishBars(_ context.Context, bars []models.Bar) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.bars = append(p.bars, bars)
	return nil
}

func (p *fakePublisher) PublishSignals(_ context.Context, signals []models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.signals = append(p.signals, signals...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeMarketData struct {
	mu      sync.Mutex
	bars    map[string][]models.Bar
	errs    map[string][]error
	calls   map[string]int
	symbols []models.Symbol
}

func newFakeMarketData() *fakeMarketData {
	return &fakeMarketData{bars: map[string][]models.Bar{}, errs: map[string][]error{}, calls: map[string]int{}}
}

func (m *fakeMarketData) FetchDaily(_ context.Context, code string, _, _ time.Time) ([]models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[code]
	m.calls[code]++
	if errs := m.errs[code]; n < len(errs) {
		return nil, errs[n]
	}
	return m.bars[code], nil
}

func (m *fakeMarketData) FetchUniverse(context.Context) ([]models.Symbol, error) {
	return m.symbols, nil
}
