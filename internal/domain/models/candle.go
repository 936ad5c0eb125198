package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCandle marks a candle or series that breaks the OHLCV invariants.
var ErrInvalidCandle = errors.New("invalid candle")

// Candle is one OHLCV interval. Timestamp is epoch milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the candle open time.
func (c Candle) Time() time.Time { return time.UnixMilli(c.Timestamp).UTC() }

// Validate checks the OHLC ordering invariant.
func (c Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("%w: non-positive price at %d", ErrInvalidCandle, c.Timestamp)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume at %d", ErrInvalidCandle, c.Timestamp)
	}
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if c.Low > lo || hi > c.High {
		return fmt.Errorf("%w: ohlc out of order at %d", ErrInvalidCandle, c.Timestamp)
	}
	return nil
}

// ValidateSeries checks every candle and strict timestamp ordering.
func ValidateSeries(series []Candle) error {
	for i, c := range series {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.Timestamp <= series[i-1].Timestamp {
			return fmt.Errorf("candle %d: %w: timestamp not increasing", i, ErrInvalidCandle)
		}
	}
	return nil
}

// Closes extracts close prices.
func Closes(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = c.Close
	}
	return out
}

// Highs extracts high prices.
func Highs(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = c.High
	}
	return out
}

// Lows extracts low prices.
func Lows(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts volumes.
func Volumes(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = c.Volume
	}
	return out
}

// Tail returns the last n candles (or the whole series when shorter).
func Tail(series []Candle, n int) []Candle {
	if n <= 0 || n >= len(series) {
		return series
	}
	return series[len(series)-n:]
}
