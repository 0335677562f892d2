// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"
	"sort"
)

// Clamp limits v to the closed interval [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Quantile returns the q-th quantile of values using linear interpolation
// between the closest ranks. The input is not modified. ok is false for an
// empty input or a q outside [0, 1].
func Quantile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 || q < 0 || q > 1 || math.IsNaN(q) {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return QuantileSorted(sorted, q), true
}

// QuantileSorted is Quantile for input that is already sorted ascending and non-empty.
func QuantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// Pearson returns the Pearson correlation coefficient between xs and ys.
// ok is false when the slices differ in length, hold fewer than two points,
// or either one has zero variance.
func Pearson(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if constant(xs) || constant(ys) || sxx == 0 || syy == 0 {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	// guard accumulated rounding pushing |r| just past 1
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// constant reports whether every value equals the first. The comparison is
// exact, so closely spaced but distinct values still count as varying.
func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
