package predictor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/testutil"
)

func TestPredictDirection(t *testing.T) {
	tests := []struct {
		name   string
		series []models.Candle
		want   models.Direction
	}{
		{"uptrend", testutil.Geometric(40, 100, 0.01, 1000, 0), models.DirectionUp},
		{"downtrend", testutil.Geometric(40, 100, -0.01, 1000, 0), models.DirectionDown},
		{"flat", testutil.Flat(40, 100, 1000), models.DirectionNeutral},
		{"below threshold", testutil.Geometric(40, 100, 0.0005, 1000, 0), models.DirectionNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOLS().Predict(tt.series)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Direction)
			assert.Equal(t, ModelName, p.Model)
			assert.GreaterOrEqual(t, p.Probability, 0.0)
			assert.LessOrEqual(t, p.Probability, 1.0)
		})
	}
}

func TestPredictExactGeometricFit(t *testing.T) {
	p, err := NewOLS().Predict(testutil.Geometric(30, 50, 0.02, 1000, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.02, p.PredictedChange, 1e-9)
	assert.InDelta(t, 1, p.Probability, 1e-9)
}

func TestPredictUsesTrailingWindow(t *testing.T) {
	series := testutil.Concat(
		testutil.Geometric(40, 100, -0.02, 1000, 0),
		testutil.Geometric(20, 45, 0.01, 1000, 0),
	)
	p, err := NewOLS().Predict(series)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionUp, p.Direction)
}

func TestPredictInsufficientData(t *testing.T) {
	_, err := NewOLS(WithWindow(30)).Predict(testutil.Flat(29, 100, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestFitLineConstant(t *testing.T) {
	slope, r2 := fitLine([]float64{math.Log(5), math.Log(5), math.Log(5)})
	assert.Zero(t, slope)
	assert.Zero(t, r2)
}
