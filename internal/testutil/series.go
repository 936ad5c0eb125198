// Package testutil builds deterministic candle series for package tests.
package testutil

import (
	"math"

	"TokenScope/internal/domain/models"
)

// BaseTimestamp is 2024-01-01T00:00:00Z in epoch milliseconds.
const BaseTimestamp int64 = 1704067200000

const hourMs int64 = 3600 * 1000

// Flat returns n identical candles.
func Flat(n int, price, volume float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: BaseTimestamp + int64(i)*hourMs,
			Open:      price, High: price, Low: price, Close: price,
			Volume: volume,
		}
	}
	return out
}

// Geometric returns n candles whose close grows by rate per bar and whose
// volume grows by volRate per bar. Each candle opens at the previous close.
func Geometric(n int, start, rate, volume, volRate float64) []models.Candle {
	out := make([]models.Candle, n)
	prev := start / (1 + rate)
	for i := range out {
		c := start * math.Pow(1+rate, float64(i))
		hi, lo := math.Max(prev, c), math.Min(prev, c)
		out[i] = models.Candle{
			Timestamp: BaseTimestamp + int64(i)*hourMs,
			Open:      prev,
			High:      hi * 1.002,
			Low:       lo * 0.998,
			Close:     c,
			Volume:    volume * math.Pow(1+volRate, float64(i)),
		}
		prev = c
	}
	return out
}

// Wave returns n candles oscillating around start with the given relative
// amplitude and period, plus a slow drift per bar. The noise term is a fixed
// function of the index so the series is reproducible.
func Wave(n int, start, amplitude, period, drift float64) []models.Candle {
	out := make([]models.Candle, n)
	prev := start
	for i := range out {
		x := float64(i)
		noise := 0.004 * math.Sin(x*1.7+0.3) * math.Cos(x*0.37)
		c := start * (1 + amplitude*math.Sin(2*math.Pi*x/period) + drift*x + noise)
		hi, lo := math.Max(prev, c), math.Min(prev, c)
		out[i] = models.Candle{
			Timestamp: BaseTimestamp + int64(i)*hourMs,
			Open:      prev,
			High:      hi * (1.003 + 0.002*math.Abs(math.Sin(x))),
			Low:       lo * (0.997 - 0.002*math.Abs(math.Cos(x))),
			Close:     c,
			Volume:    1000 * (1 + 0.5*math.Abs(math.Sin(x*0.9)) + 0.3*math.Cos(x*0.21)),
		}
		prev = c
	}
	return out
}

// Concat joins series, re-stamping timestamps so they stay strictly increasing.
func Concat(parts ...[]models.Candle) []models.Candle {
	var out []models.Candle
	for _, p := range parts {
		out = append(out, p...)
	}
	for i := range out {
		out[i].Timestamp = BaseTimestamp + int64(i)*hourMs
	}
	return out
}
