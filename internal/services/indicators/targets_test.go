package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/testutil"
)

func TestRoundPriceKeepsSignificantDigits(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{4e-9, 4e-9},
		{4.123456789e-9, 4.1234568e-9},
		{0.0000123456789, 0.000012345679},
		{1.23456789, 1.2345679},
		{98765.4321, 98765.432},
	}
	for _, tt := range tests {
		assert.InEpsilon(t, tt.want, RoundPrice(tt.in), 1e-12, "in=%g", tt.in)
	}
	assert.Zero(t, RoundPrice(0))
}

func TestTargetsOnMicroPricedSeries(t *testing.T) {
	series := testutil.Wave(80, 4.2e-9, 0.05, 12, 0)
	res, err := NewEngine().Analyze(series)
	require.NoError(t, err)

	last := series[len(series)-1].Close
	tg := res.Targets
	assert.InEpsilon(t, last, tg.Entry, 1e-6)
	assert.Greater(t, tg.TakeProfit1, tg.Entry)
	assert.Greater(t, tg.TakeProfit2, tg.TakeProfit1)
	assert.Greater(t, tg.StopLoss, 0.0)
	assert.Greater(t, tg.Support, 0.0)
	assert.Greater(t, tg.Resistance, tg.Entry)
}
