package features

import "math"

// Window is a view over arena[start:end). Sliding it moves both indices, so
// every rolling aggregate is a statistic of an explicit, inspectable range.
type Window struct {
	arena []float64
	start int
	end   int
}

// NewWindow returns the view arena[start:end), clamped to the arena bounds.
func NewWindow(arena []float64, start, end int) Window {
	if start < 0 {
		start = 0
	}
	if end > len(arena) {
		end = len(arena)
	}
	if end < start {
		end = start
	}
	return Window{arena: arena, start: start, end: end}
}

// Start is the first index covered.
func (w Window) Start() int { return w.start }

// End is one past the last index covered.
func (w Window) End() int { return w.end }

// Len is the number of values covered.
func (w Window) Len() int { return w.end - w.start }

// Values returns the covered slice. Callers must not modify it.
func (w Window) Values() []float64 { return w.arena[w.start:w.end] }

// Slide advances the window by one position.
func (w *Window) Slide() {
	w.start++
	w.end++
}

// Defined is true when the window is non-empty and holds no NaN.
func (w Window) Defined() bool {
	if w.Len() == 0 {
		return false
	}
	for _, v := range w.Values() {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Mean is the arithmetic mean, NaN when the window is undefined.
func (w Window) Mean() float64 {
	if !w.Defined() {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range w.Values() {
		sum += v
	}
	return sum / float64(w.Len())
}

// StdDev is the sample standard deviation (n-1), NaN for fewer than two
// values or an undefined window.
func (w Window) StdDev() float64 {
	if w.Len() < 2 {
		return math.NaN()
	}
	mean := w.Mean()
	if math.IsNaN(mean) {
		return mean
	}
	sum2 := 0.0
	for _, v := range w.Values() {
		d := v - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(w.Len()-1))
}

// IsDefined reports whether an aggregate value exists.
func IsDefined(v float64) bool { return !math.IsNaN(v) }
