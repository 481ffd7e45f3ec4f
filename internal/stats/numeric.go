// Package stats holds the numeric and text helpers that analysis scripts can
// import as "analyst/stats". Every function ignores NaN inputs, so columns
// with missing values can be passed straight from a frame.
package stats

import (
	"math"
	"sort"
)

// Clean returns xs without NaN or infinite values.
func Clean(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out = append(out, x)
	}
	return out
}

// Count returns the number of usable values.
func Count(xs []float64) int {
	return len(Clean(xs))
}

// Sum adds the usable values.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range Clean(xs) {
		s += x
	}
	return s
}

// Mean is the arithmetic mean, NaN when there is no usable value.
func Mean(xs []float64) float64 {
	c := Clean(xs)
	if len(c) == 0 {
		return math.NaN()
	}
	return Sum(c) / float64(len(c))
}

// Variance is the sample variance (n-1), NaN below two values.
func Variance(xs []float64) float64 {
	c := Clean(xs)
	if len(c) < 2 {
		return math.NaN()
	}
	m := Mean(c)
	var ss float64
	for _, x := range c {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(c)-1)
}

// StdDev is the sample standard deviation.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Min returns the smallest usable value.
func Min(xs []float64) float64 {
	c := Clean(xs)
	if len(c) == 0 {
		return math.NaN()
	}
	m := c[0]
	for _, x := range c[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest usable value.
func Max(xs []float64) float64 {
	c := Clean(xs)
	if len(c) == 0 {
		return math.NaN()
	}
	m := c[0]
	for _, x := range c[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Quantile returns the q-th quantile (0..1) using linear interpolation
// between closest ranks.
func Quantile(xs []float64, q float64) float64 {
	c := Clean(xs)
	if len(c) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	sort.Float64s(c)
	pos := q * float64(len(c)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return c[lo]
	}
	frac := pos - float64(lo)
	return c[lo] + (c[hi]-c[lo])*frac
}

// Median is Quantile(xs, 0.5).
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Correlation is the Pearson correlation of the pairs where both values are
// usable. NaN when fewer than two pairs remain or either side is constant.
func Correlation(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	var a, b []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		a = append(a, xs[i])
		b = append(b, ys[i])
	}
	if len(a) < 2 {
		return math.NaN()
	}
	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
