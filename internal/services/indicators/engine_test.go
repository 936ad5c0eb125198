package indicators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/testutil"
)

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := NewEngine().Analyze(testutil.Flat(49, 100, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	var ide *models.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 49, ide.Have)
	assert.Equal(t, MinCandles, ide.Need)
}

func TestComputeTrailingAlignment(t *testing.T) {
	series := testutil.Wave(60, 100, 0.05, 12, 0)
	set, err := NewEngine().Compute(series)
	require.NoError(t, err)

	n := len(series)
	assert.Len(t, set.RSI, n-rsiPeriod)
	assert.Len(t, set.MACDHist, n-(macdSlow-1+macdSignal-1))
	assert.Len(t, set.BBMiddle, n-bbPeriod+1)
	assert.Len(t, set.SMA[5], n-5+1)
	assert.Len(t, set.EMA[50], n-50+1)
	assert.Len(t, set.StochK, n-stochK+1)
	assert.Len(t, set.StochD, n-stochK-stochD+2)
	assert.Len(t, set.OBV, n)
	assert.Len(t, set.ATR, n-atrPeriod)

	_, ok := set.SMA[200]
	assert.False(t, ok, "sma200 must be absent for a 60-candle series")
}

func TestAnalyzeFlatSeriesIsNeutral(t *testing.T) {
	res, err := NewEngine().Analyze(testutil.Flat(60, 100, 1000))
	require.NoError(t, err)

	assert.InDelta(t, 50, res.Scores.Overall, 5)
	assert.Equal(t, models.Neutral, res.OverallSignal)
	assert.Equal(t, models.Neutral, res.Signals.RSI.Label)
	assert.InDelta(t, 50, res.Signals.RSI.Value, 1e-9)
	assert.Equal(t, models.AlignmentNeutral, res.Signals.MA.Alignment)
	assert.Equal(t, models.VolumeNeutral, res.Signals.Volume.OBVTrend)
	assert.InDelta(t, 1, res.Signals.Volume.Ratio, 1e-9)
	assert.InDelta(t, 0.5, res.Signals.Bollinger.Position, 1e-9)
	assert.False(t, res.Signals.Bollinger.Squeeze)

	for _, s := range []models.Signal{
		res.Signals.RSI, res.Signals.MACD.Signal, res.Signals.Bollinger.Signal,
		res.Signals.Stochastic.Signal, res.Signals.Volume.Signal,
	} {
		assert.Equal(t, models.StrengthWeak, s.Strength, s.Name)
	}
	assert.LessOrEqual(t, res.Confidence, 0.5)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
}

func TestAnalyzeCleanUptrend(t *testing.T) {
	// +1% per bar over 60 bars (about +80%), volume +5% per bar.
	series := testutil.Geometric(60, 100, 0.01, 1000, 0.05)
	res, err := NewEngine().Analyze(series)
	require.NoError(t, err)

	assert.Equal(t, models.AlignmentBullish, res.Signals.MA.Alignment)
	assert.Equal(t, models.Sell, res.Signals.RSI.Label)
	assert.Equal(t, models.StrengthStrong, res.Signals.RSI.Strength)
	assert.Equal(t, models.Buy, res.Signals.MACD.Label)
	assert.Equal(t, models.TrendUp, res.Signals.Trend.Direction)
	assert.Equal(t, models.VolumeIncreasing, res.Signals.Volume.OBVTrend)
	assert.Equal(t, models.VolumeConfirmed, res.Signals.Volume.Confirmation)
	assert.Greater(t, res.Scores.Trend, 90.0)
	assert.Greater(t, res.Scores.Overall, 55.0)
	assert.True(t, res.OverallSignal.IsBuy(), "got %s", res.OverallSignal)
}

func TestScoresAndConfidenceBounded(t *testing.T) {
	cases := map[string][]models.Candle{
		"wave":      testutil.Wave(120, 50, 0.1, 20, 0.001),
		"downtrend": testutil.Geometric(80, 100, -0.015, 1000, -0.01),
		"micro":     testutil.Wave(80, 0.0000042, 0.08, 15, 0),
	}
	for name, series := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := NewEngine().Analyze(series)
			require.NoError(t, err)
			for _, v := range []float64{res.Scores.Momentum, res.Scores.Trend, res.Scores.Volatility, res.Scores.Volume, res.Scores.Overall} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			assert.Equal(t, models.LabelForScore(res.Scores.Overall), res.OverallSignal)
		})
	}
}

func TestMicroPricedBandsHaveWidth(t *testing.T) {
	res, err := NewEngine().Analyze(testutil.Wave(80, 0.0000042, 0.08, 15, 0))
	require.NoError(t, err)
	assert.Greater(t, res.Signals.Bollinger.Upper, res.Signals.Bollinger.Lower)
	assert.Greater(t, res.Signals.Bollinger.Width, 0.0)
}

func TestDowntrendIsBearish(t *testing.T) {
	res, err := NewEngine().Analyze(testutil.Geometric(80, 100, -0.015, 1000, 0))
	require.NoError(t, err)
	assert.Equal(t, models.AlignmentBearish, res.Signals.MA.Alignment)
	assert.Equal(t, models.Buy, res.Signals.RSI.Label)
	assert.Equal(t, models.TrendDown, res.Signals.Trend.Direction)
	assert.Less(t, res.Scores.Trend, 20.0)
}

func TestPriceTargets(t *testing.T) {
	bb := models.BollingerResult{Upper: 110, Middle: 100, Lower: 90}
	pt := priceTargets(100, bb, 4)
	assert.Equal(t, 100.0, pt.Entry)
	assert.Equal(t, 94.0, pt.StopLoss)
	assert.Equal(t, 104.0, pt.TakeProfit1)
	assert.Equal(t, 108.0, pt.TakeProfit2)
	assert.Equal(t, 90.0, pt.Support)
	assert.Equal(t, 110.0, pt.Resistance)
	assert.InDelta(t, 1.3333, pt.RiskReward, 1e-4)

	zero := priceTargets(100, models.BollingerResult{Upper: 100, Middle: 100, Lower: 100}, 0)
	assert.Equal(t, 100.0, zero.StopLoss)
	assert.Equal(t, 100.0, zero.TakeProfit2)
}
