package util

import "math"

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	s := 0.0
	for _, x := range xs {
		d := x - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(xs)))
}

// Skewness returns the population skewness, 0 when the series has no spread.
func Skewness(xs []float64) float64 {
	sd := StdDev(xs)
	if sd == 0 {
		return 0
	}
	m := Mean(xs)
	s := 0.0
	for _, x := range xs {
		d := (x - m) / sd
		s += d * d * d
	}
	return s / float64(len(xs))
}

// Kurtosis returns the population excess kurtosis, 0 when the series has no spread.
func Kurtosis(xs []float64) float64 {
	sd := StdDev(xs)
	if sd == 0 {
		return 0
	}
	m := Mean(xs)
	s := 0.0
	for _, x := range xs {
		d := (x - m) / sd
		s += d * d * d * d
	}
	return s/float64(len(xs)) - 3
}

// Pearson returns the correlation of two equal-length series, 0 when undefined.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return 0
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

// SimpleReturns returns p[i]/p[i-1]-1, with 0 where the previous price is not positive.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			out[i-1] = prices[i]/prices[i-1] - 1
		}
	}
	return out
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Last returns the final element or 0.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// Prev returns the element before the final one or 0.
func Prev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return xs[len(xs)-2]
}

// Tail returns the last n values (or all when shorter).
func Tail(xs []float64, n int) []float64 {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

// MinMax returns the extremes of xs; both 0 for an empty slice.
func MinMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// SafeDiv returns a/b, or def when b is zero or the result is not finite.
func SafeDiv(a, b, def float64) float64 {
	if b == 0 {
		return def
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return def
	}
	return r
}

// Finite replaces NaN and Inf with def.
func Finite(x, def float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return def
	}
	return x
}
