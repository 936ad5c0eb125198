package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/testutil"
)

// fromCloses builds small bullish bodies around each close so only swing
// structure matters.
func fromCloses(closes ...float64) []models.Candle {
	out := testutil.Flat(len(closes), 1, 1000)
	for i, c := range closes {
		out[i].Open = c * 0.999
		out[i].Close = c
		out[i].High = c * 1.003
		out[i].Low = c * 0.997
	}
	return out
}

func names(res *models.PatternResult) []string {
	var out []string
	for _, p := range res.Patterns {
		out = append(out, p.Name)
	}
	return out
}

func TestDetectNothingOnSmoothSeries(t *testing.T) {
	for _, series := range [][]models.Candle{
		testutil.Flat(60, 100, 1000),
		testutil.Geometric(60, 100, 0.01, 1000, 0.05),
	} {
		res := NewDetector().Detect(series)
		assert.Empty(t, res.Patterns)
		assert.Equal(t, 50.0, res.Score)
	}
}

func TestDetectHammerAfterDecline(t *testing.T) {
	series := fromCloses(110, 108, 106, 104, 102)
	series[4].Open, series[4].High, series[4].Low = 104, 104.2, 101.8
	series = append(series, models.Candle{
		Timestamp: series[4].Timestamp + 3600_000,
		Open:      100, Close: 100.5, High: 100.6, Low: 98.5, Volume: 1000,
	})

	res := NewDetector().Detect(series)
	require.Equal(t, []string{NameHammer}, names(res))
	assert.Equal(t, models.PatternBullish, res.Patterns[0].Bias)
	assert.Equal(t, 5, res.Patterns[0].Index)
	assert.Equal(t, 60.0, res.Score)
}

func TestDetectBullishEngulfing(t *testing.T) {
	series := fromCloses(110, 108, 106, 104, 102)
	series[4].Open, series[4].High, series[4].Low = 104, 104.2, 101.8
	series = append(series, models.Candle{
		Timestamp: series[4].Timestamp + 3600_000,
		Open:      101.5, Close: 105, High: 105.2, Low: 101.3, Volume: 1000,
	})

	res := NewDetector().Detect(series)
	assert.Equal(t, []string{NameBullishEngulfing}, names(res))
	assert.Equal(t, 65.0, res.Score)
}

func TestDetectDoubleTop(t *testing.T) {
	series := fromCloses(100, 102, 104, 106, 108, 110, 108, 106, 104, 106, 108, 110.5, 108, 106, 104, 102, 100)
	res := NewDetector().Detect(series)
	require.Equal(t, []string{NameDoubleTop}, names(res))
	assert.Equal(t, 11, res.Patterns[0].Index)
	assert.Equal(t, 30.0, res.Score)
}

func TestDetectDoubleBottom(t *testing.T) {
	series := fromCloses(100, 98, 96, 94, 92, 90, 92, 94, 96, 94, 92, 90.2, 92, 94, 96, 98, 100)
	res := NewDetector().Detect(series)
	require.Equal(t, []string{NameDoubleBottom}, names(res))
	assert.Equal(t, 70.0, res.Score)
}

func TestDetectIgnoresDistantPeaks(t *testing.T) {
	series := fromCloses(100, 102, 104, 106, 108, 110, 108, 106, 104, 106, 108, 118, 108, 106, 104, 102, 100)
	res := NewDetector().Detect(series)
	assert.Empty(t, res.Patterns)
}

func TestDetectShortSeries(t *testing.T) {
	res := NewDetector().Detect(testutil.Flat(1, 100, 1000))
	assert.Empty(t, res.Patterns)
	assert.Equal(t, 50.0, res.Score)
}
