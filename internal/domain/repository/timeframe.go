package repository

import (
	"strings"
	"time"

	"TokenScope/pkg/util"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// ParseTimeframes splits a comma list, dropping invalid and duplicate entries.
func ParseTimeframes(s string) []Timeframe {
	seen := map[Timeframe]bool{}
	var out []Timeframe
	for _, part := range util.SplitCSV(s) {
		tf := Timeframe(strings.ToLower(part))
		if !IsValidTimeframe(tf) || seen[tf] {
			continue
		}
		seen[tf] = true
		out = append(out, tf)
	}
	return out
}

// Duration returns the bucket length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Weight is the importance of the timeframe in weighted trend consensus.
func (tf Timeframe) Weight() float64 {
	switch tf {
	case TF1m:
		return 0.5
	case TF5m:
		return 1
	case TF15m:
		return 1.5
	case TF1h:
		return 2
	case TF4h:
		return 2.5
	case TF1d:
		return 3
	default:
		return 1
	}
}
