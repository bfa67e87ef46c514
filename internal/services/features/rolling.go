package features

import "math"

// Stat reduces a window to one number.
type Stat func(Window) float64

var (
	MeanStat   Stat = Window.Mean
	StdDevStat Stat = Window.StdDev
)

// Trailing computes stat over values[i-n+1 : i+1] for every i. Positions
// before the first full window, or whose window holds a NaN, are NaN.
func Trailing(values []float64, n int, stat Stat) []float64 {
	out := nanSlice(len(values))
	if n <= 0 || n > len(values) {
		return out
	}
	w := NewWindow(values, 0, n)
	for ; w.End() <= len(values); w.Slide() {
		out[w.End()-1] = stat(w)
	}
	return out
}

// Forward computes stat over values[i : i+n] for every i by shifting the
// trailing result back n-1 positions. The last n-1 positions are NaN.
func Forward(values []float64, n int, stat Stat) []float64 {
	if n <= 0 {
		return nanSlice(len(values))
	}
	return ShiftBack(Trailing(values, n, stat), n-1)
}

// ShiftBack returns out[i] = xs[i+k], NaN past the end.
func ShiftBack(xs []float64, k int) []float64 {
	out := nanSlice(len(xs))
	for i := range out {
		if j := i + k; j >= 0 && j < len(xs) {
			out[i] = xs[j]
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
