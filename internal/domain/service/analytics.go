package service

import (
	"TokenScope/internal/domain/models"
)

// PriceDirectionPredictor estimates the next-bar price direction from a series.
type PriceDirectionPredictor interface {
	Predict(series []models.Candle) (*models.PricePrediction, error)
}

// IndicatorAnalyzer runs the indicator battery and scoring over one series.
type IndicatorAnalyzer interface {
	Analyze(series []models.Candle) (*models.IndicatorAnalysis, error)
}

// RegimeClassifier is a trainable market regime model.
type RegimeClassifier interface {
	Train(series []models.Candle) (*models.TrainingSummary, error)
	Predict(recent []models.Candle) *models.RegimePrediction
	Trained() bool
}

// PatternDetector scores chart and candlestick patterns.
type PatternDetector interface {
	Detect(series []models.Candle) *models.PatternResult
}
