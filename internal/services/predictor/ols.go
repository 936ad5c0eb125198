// Package predictor estimates next-bar price direction from a trailing window.
package predictor

import (
	"math"

	"TokenScope/internal/domain/models"
	domsvc "TokenScope/internal/domain/service"
	"TokenScope/pkg/util"
)

const (
	DefaultWindow = 20
	// Threshold is the minimum one-bar predicted change that counts as a direction.
	Threshold = 0.001
	ModelName = "ols_log_price"
)

// OLS fits log(close) against the bar index and extrapolates one bar ahead.
// Probability is the fit's R², so noisy windows are reported as weak calls.
type OLS struct {
	window    int
	threshold float64
}

type Option func(*OLS)

func WithWindow(n int) Option {
	return func(o *OLS) {
		if n >= 3 {
			o.window = n
		}
	}
}

func WithThreshold(th float64) Option {
	return func(o *OLS) {
		if th > 0 {
			o.threshold = th
		}
	}
}

func NewOLS(opts ...Option) *OLS {
	o := &OLS{window: DefaultWindow, threshold: Threshold}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OLS) Predict(series []models.Candle) (*models.PricePrediction, error) {
	if len(series) < o.window {
		return nil, &models.InsufficientDataError{Op: "predictor", Have: len(series), Need: o.window}
	}
	closes := models.Closes(models.Tail(series, o.window))
	ys := make([]float64, len(closes))
	for i, c := range closes {
		ys[i] = math.Log(c)
	}
	slope, r2 := fitLine(ys)
	change := math.Exp(slope) - 1

	pred := &models.PricePrediction{
		Direction:       models.DirectionNeutral,
		Probability:     util.Clamp(r2, 0, 1),
		PredictedChange: change,
		Model:           ModelName,
	}
	switch {
	case change > o.threshold:
		pred.Direction = models.DirectionUp
	case change < -o.threshold:
		pred.Direction = models.DirectionDown
	}
	return pred, nil
}

// fitLine regresses ys on 0..n-1 and returns the slope and R².
// A constant series has slope 0 and R² 0.
func fitLine(ys []float64) (slope, r2 float64) {
	n := float64(len(ys))
	xMean := (n - 1) / 2
	yMean := util.Mean(ys)
	var sxy, sxx, syy float64
	for i, y := range ys {
		dx := float64(i) - xMean
		dy := y - yMean
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0
	}
	slope = sxy / sxx
	if syy < 1e-18 {
		return slope, 0
	}
	r2 = sxy * sxy / (sxx * syy)
	return util.Finite(slope, 0), util.Finite(r2, 0)
}

var _ domsvc.PriceDirectionPredictor = (*OLS)(nil)
